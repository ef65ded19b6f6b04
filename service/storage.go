package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/mholt/archiver"
)

// Extension of a file
type Extension string

// Some supported extensions
const (
	NoExtension  Extension = ""
	ExtensionCSV Extension = "csv"
	ExtensionZIP Extension = "zip"
	// Sentinel product. It is a directory, thus it is stored as a zip file
	ExtensionSAFE Extension = "SAFE"
)

// ErrFileNotFound is an error returned by Download or Delete
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// Storage is a service to store and retrieve files from a storage (local directory or bucket)
type Storage interface {
	// Upload persists the local file (or directory, as a zip) into the storage with the given name and returns its uri
	Upload(ctx context.Context, localPath, name string) (string, error)
	// Download retrieves the file from the storage to the localPath
	// Raise ErrFileNotFound
	Download(ctx context.Context, name, localPath string) error
	// Delete the file from the storage
	// Raise ErrFileNotFound
	Delete(ctx context.Context, name string) error
}

// StorageStrategy implements Storage using geocube.Strategy
type StorageStrategy struct {
	storage storage.Strategy
	uri     uri.DefaultUri
}

// NewStorageStrategy creates a new StorageStrategy
func NewStorageStrategy(ctx context.Context, storageURI string) (*StorageStrategy, error) {
	uri, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.ParseURI: %w", err)
	}

	storageClient, err := uri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy: %w", err)
	}

	return &StorageStrategy{storage: storageClient, uri: uri}, nil
}

// Upload implements Storage
func (ss *StorageStrategy) Upload(ctx context.Context, localPath, name string) (string, error) {
	src := localPath
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("Upload.Stat: %w", err)
	}
	if info.IsDir() {
		dst := WithExt(src, ExtensionZIP)
		zipper := archiver.NewZip()
		zipper.CompressionLevel = flate.BestSpeed
		if err := zipper.Archive([]string{src}, dst); err != nil {
			return "", fmt.Errorf("Upload.Archive: %w", err)
		}
		defer os.Remove(dst)
		src = dst
		name = WithExt(name, ExtensionZIP)
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("Upload.Open: %w", err)
	}
	defer f.Close()

	dst := ss.Path(name)
	if err := ss.storage.UploadFile(ctx, dst, f); err != nil {
		return "", fmt.Errorf("Upload.UploadFile to %s: %w", dst, err)
	}
	return dst, nil
}

// Download implements Storage
func (ss *StorageStrategy) Download(ctx context.Context, name, localPath string) error {
	src := ss.Path(name)
	if err := ss.storage.DownloadToFile(ctx, src, localPath); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{src}
		}
		return fmt.Errorf("Download.DownloadToFile from %s: %w", src, err)
	}
	return nil
}

// Delete implements Storage
func (ss *StorageStrategy) Delete(ctx context.Context, name string) error {
	file := ss.Path(name)
	if err := ss.storage.Delete(ctx, file); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{file}
		}
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// Path returns the uri of the file in the storage
func (ss *StorageStrategy) Path(name string) string {
	uri := ss.uri.String()
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + path.Clean(name)
}

// Unarchive extracts the zip file to localDir, checking that it is not empty
// It returns the name of the extracted files and directories
func Unarchive(localZip, localDir string) ([]string, error) {
	tmpdir, err := os.MkdirTemp(localDir, filepath.Base(localZip))
	if err != nil {
		return nil, MakeTemporary(err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return nil, fmt.Errorf("Unarchive: %w", err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return nil, MakeTemporary(err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("Unarchive: empty zip %s", localZip)
	}
	var names []string
	for _, f := range files {
		if err := os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(localDir, f.Name())); err != nil {
			return nil, fmt.Errorf("Unarchive.Rename: %w", err)
		}
		names = append(names, f.Name())
	}
	return names, nil
}

func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}

func GetExt(filePath string) Extension {
	ext := path.Ext(filePath)
	if ext == "" {
		return NoExtension
	}
	return Extension(ext[1:])
}
