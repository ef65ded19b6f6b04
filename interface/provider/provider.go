package provider

import (
	"context"

	"github.com/airbusgeo/geocube-ndvi/common"
)

// ImageProvider is the interface of an image download service
type ImageProvider interface {
	// Download the product of the scene to the given localDir
	// The product is extracted in localDir (e.g. localDir/<scene.SourceID>.SAFE)
	Download(ctx context.Context, scene common.Scene, localDir string) error

	// Name of the provider
	Name() string
}
