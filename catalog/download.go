package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/interface/provider"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/google/uuid"
)

// Fetch downloads the product of the scene in a new directory of workdir, with the first successful image provider.
// It returns the directory, that the caller is responsible for removing.
// Any failure is returned as a service.ErrFetch (the directory is then already removed).
func (c *Client) Fetch(ctx context.Context, scene common.Scene, workdir string) (string, error) {
	dir, err := c.fetch(ctx, scene, workdir)
	if err != nil {
		return "", service.ErrFetch{Scene: scene.SourceID, Err: err}
	}
	return dir, nil
}

func (c *Client) fetch(ctx context.Context, scene common.Scene, workdir string) (_ string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.ImageProviders) == 0 {
		return "", fmt.Errorf("fetch: no image provider is configured")
	}

	// Working dir
	dir := filepath.Join(workdir, uuid.New().String())
	if err := os.MkdirAll(dir, 0766); err != nil {
		return "", service.MakeTemporary(fmt.Errorf("make directory %s: %w", dir, err))
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	// Download with the first successful imageProvider
	log.Logger(ctx).Sugar().Infof("downloading %s", scene.SourceID)
	for _, imageProvider := range c.ImageProviders {
		e := imageProvider.Download(ctx, scene, dir)
		if err = service.MergeErrors(false, err, e); err == nil {
			log.Logger(ctx).Sugar().Debugf("%s downloaded from %s", scene.SourceID, imageProvider.Name())
			break
		}
		if provider.IsProductNotFound(e) {
			log.Logger(ctx).Sugar().Debugf("[%s] %v", imageProvider.Name(), e)
			continue
		}
		log.Logger(ctx).Sugar().Warnf("[%s] %v", imageProvider.Name(), e)
	}
	if err != nil {
		return "", fmt.Errorf("fetch.ImageProviders.%w", err)
	}
	return dir, nil
}
