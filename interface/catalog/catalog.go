package catalog

import (
	"context"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/paulsmith/gogeos/geos"
)

type ScenesProvider interface {
	Name() string
	SearchScenes(ctx context.Context, area *entities.Area, aoi geos.Geometry) ([]*entities.Scene, error)
}
