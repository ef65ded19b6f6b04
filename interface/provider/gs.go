package provider

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/airbusgeo/geocube/interface/storage/gcs"
	"google.golang.org/api/iterator"
)

// GSSentinel2L2ABucket is the public bucket of the Sentinel-2 Level-2A products
const GSSentinel2L2ABucket = "gs://gcp-public-data-sentinel-2/L2/tiles/{LATITUDE_BAND}/{GRID_SQUARE}/{GRANULE_ID}/{SCENE}.SAFE"

// GSImageProvider implements ImageProvider for Google Storage Sentinel buckets
type GSImageProvider struct {
	buckets map[common.Constellation][]string
}

// Name implements ImageProvider
func (ip *GSImageProvider) Name() string {
	return "GoogleStorage"
}

// NewGSImageProvider creates a new ImageProvider from Google Storage Sentinel buckets
func NewGSImageProvider() *GSImageProvider {
	return &GSImageProvider{buckets: map[common.Constellation][]string{}}
}

// AddBucket to the provider
// constellation must be one of sentinel1, sentinel-1, sentinel2, sentinel-2
// bucket can contain several {IDENTIFIER} than will be replaced according to the information found in scenename
// IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
func (ip *GSImageProvider) AddBucket(constellation, bucket string) error {
	c := common.GetConstellationFromString(constellation)
	if c == common.Unknown {
		return fmt.Errorf("GSImageProvider: constellation not supported: %s", constellation)
	}
	ip.buckets[c] = append(ip.buckets[c], bucket)
	return nil
}

// URLs returns the candidate urls of the scene, one per bucket
func (ip *GSImageProvider) URLs(sceneName string) ([]string, error) {
	constellation := common.GetConstellationFromProductId(sceneName)
	buckets, ok := ip.buckets[constellation]
	if constellation == common.Unknown || !ok {
		return nil, fmt.Errorf("GSImageProvider: constellation not supported")
	}
	format, err := common.Info(sceneName)
	if err != nil {
		return nil, fmt.Errorf("GSImageProvider: %w", err)
	}
	urls := make([]string, len(buckets))
	for i, bucket := range buckets {
		urls[i] = common.FormatBrackets(bucket, format)
	}
	return urls, nil
}

func findBlob(ctx context.Context, client *storage.Client, url string) (string, error) {
	// Find the first blob that matches the url pattern
	bucket, blob, err := gcs.Parse(url)
	if err != nil {
		return "", err
	}
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.Index(blob, "*"); i != -1 {
		blob = blob[:i]
	}
	// Find all the blobs that match the prefix
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("list[%s/%s*]: %w", bucket, blob, err)
		}
		if idx := re.FindIndex([]byte(attrs.Name)); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return url, ErrProductNotFound{url}
}

// Download implements ImageProvider
func (ip *GSImageProvider) Download(ctx context.Context, scene common.Scene, localDir string) error {
	urls, err := ip.URLs(scene.SourceID)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("GSImageProvider.NewClient: %w", err)
	}
	defer client.Close()

	err = nil
	for _, url := range urls {
		e := func() error {
			if strings.Contains(url, "*") {
				var err error
				if url, err = findBlob(ctx, client, url); err != nil {
					return fmt.Errorf("GSImageProvider: %w", err)
				}
			}
			if filepath.Ext(url) == "."+string(service.ExtensionZIP) {
				if err := ip.downloadZip(ctx, url, localDir); err != nil {
					return fmt.Errorf("GSImageProvider[%s].%w", url, err)
				}
			} else if files, err := ip.downloadDirectory(ctx, client, url, filepath.Join(localDir, filepath.Base(url))); err != nil {
				return fmt.Errorf("GSImageProvider[%s].%w", url, err)
			} else if len(files) == 0 {
				return ErrProductNotFound{url}
			}
			return nil
		}()

		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	return err
}

// downloadDirectory fetches all objects prefixed by uri to destination, one after the other
// It returns the list of absolute filenames that were created (i.e with the destination prefix)
func (ip *GSImageProvider) downloadDirectory(ctx context.Context, client *storage.Client, uri string, dstDir string) (files []string, err error) {
	defer func() {
		if err != nil {
			err = service.MakeTemporary(err)
		}
	}()

	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloadDirectory: %w", err)
	}

	bucket, prefix, err := gcs.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("downloadDirectory: %w", err)
	}
	if len(bucket) == 0 {
		return nil, fmt.Errorf("missing bucket")
	}
	prefix = strings.TrimRight(prefix, "/") + "/"

	q := &storage.Query{Prefix: prefix, Versions: false}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("downloadDirectory.SetAttrSelection: %w", err)
	}
	it := client.Bucket(bucket).Objects(ctx, q)
	for {
		objectAttrs, iterr := it.Next()
		if iterr == iterator.Done {
			break
		}
		if iterr != nil {
			return nil, fmt.Errorf("bucket iterate: %w", iterr)
		}
		filename := strings.TrimPrefix(objectAttrs.Name, prefix)
		// Skip folder placeholders
		if filename == "" || strings.HasSuffix(filename, "/") || strings.HasSuffix(filename, "_$folder$") {
			continue
		}
		filename = filepath.Join(dstDir, filename)
		if err := os.MkdirAll(filepath.Dir(filename), 0766); err != nil {
			return nil, fmt.Errorf("mkdirall %s: %w", filepath.Dir(filename), err)
		}
		if err := gs.DownloadToFile(ctx, "gs://"+bucket+"/"+objectAttrs.Name, filename); err != nil {
			return nil, fmt.Errorf("downloadDirectory.%w", err)
		}
		files = append(files, filename)
	}
	log.Logger(ctx).Sugar().Debugf("%d files downloaded from %s", len(files), uri)
	return files, nil
}

// downloadZip to destination
func (ip *GSImageProvider) downloadZip(ctx context.Context, uri string, dstDir string) error {
	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return fmt.Errorf("downloadZip.NewGsStrategy: %w", err)
	}
	localZip := path.Join(dstDir, filepath.Base(uri))
	if err := gs.DownloadToFile(ctx, uri, localZip); err != nil {
		return fmt.Errorf("downloadZip.%w", err)
	}
	defer os.Remove(localZip)
	if _, err := service.Unarchive(localZip, dstDir); err != nil {
		return service.MakeTemporary(fmt.Errorf("downloadZip.%w", err))
	}
	return nil
}
