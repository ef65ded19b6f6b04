package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
)

// LocalImageProvider implements ImageProvider for an archive of zipped products
// stored as <storage>/YYYY/MM/DD/<scene>.zip, where storage is a local directory or a bucket
type LocalImageProvider struct {
	path    string
	storage service.Storage
}

// Name implements ImageProvider
func (ip *LocalImageProvider) Name() string {
	return "FileSystem (" + ip.path + ")"
}

// NewLocalImageProvider creates a new ImageProvider from an archive of products
func NewLocalImageProvider(ctx context.Context, storageURI string) (*LocalImageProvider, error) {
	storage, err := service.NewStorageStrategy(ctx, storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewLocalImageProvider.%w", err)
	}
	return &LocalImageProvider{path: storageURI, storage: storage}, nil
}

// Download implements ImageProvider
func (ip *LocalImageProvider) Download(ctx context.Context, scene common.Scene, localDir string) error {
	// Retrieve date of the scene from name
	sceneName := scene.SourceID
	date, err := common.GetDateFromProductId(sceneName)
	if err != nil {
		return fmt.Errorf("LocalImageProvider: %w", err)
	}

	// Create the list of subfolders
	folders := strings.Split(date.Format("2006-01-02"), "-")
	srcZip := path.Join(folders[0], folders[1], folders[2], sceneName+"."+string(service.ExtensionZIP))

	localZip := sceneFilePath(localDir, sceneName, service.ExtensionZIP)
	if err := ip.storage.Download(ctx, srcZip, localZip); err != nil {
		if errors.As(err, &service.ErrFileNotFound{}) {
			return ErrProductNotFound{srcZip}
		}
		return fmt.Errorf("LocalImageProvider.%w", err)
	}
	defer os.Remove(localZip)

	if _, err := service.Unarchive(localZip, localDir); err != nil {
		return fmt.Errorf("LocalImageProvider.%w", err)
	}
	return nil
}
