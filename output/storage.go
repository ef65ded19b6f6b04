package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
)

// StorageSink writes the CSV and uploads it to a storage (local directory or gs://bucket/prefix)
type StorageSink struct {
	URI  string
	Name string
}

// Write implements Sink
func (s StorageSink) Write(ctx context.Context, records []common.Record) error {
	storage, err := service.NewStorageStrategy(ctx, s.URI)
	if err != nil {
		return fmt.Errorf("StorageSink.%w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ndvi")
	if err != nil {
		return fmt.Errorf("StorageSink.MkdirTemp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, filepath.Base(s.Name))
	if err := (CSVSink{Path: localPath}).Write(ctx, records); err != nil {
		return fmt.Errorf("StorageSink.%w", err)
	}
	uri, err := storage.Upload(ctx, localPath, s.Name)
	if err != nil {
		return fmt.Errorf("StorageSink.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("time series uploaded to %s", uri)
	return nil
}
