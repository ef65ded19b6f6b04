package catalog

import (
	"context"
	"fmt"
	"runtime"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/paulsmith/gogeos/geos"
)

// Query lists the scenes covering the area, in the order returned by the catalog
// Any failure is returned as a service.ErrQuery. Zero scene is not an error.
func (c *Client) Query(ctx context.Context, area entities.Area) ([]common.Scene, error) {
	scenes, err := c.ScenesInventory(ctx, &area)
	if err != nil {
		return nil, service.ErrQuery{Err: err}
	}
	res := make([]common.Scene, len(scenes))
	for i, s := range scenes {
		res[i] = s.Scene
	}
	return res, nil
}

// ScenesInventory makes an inventory of all the scenes covering the area between startDate and endDate
func (c *Client) ScenesInventory(ctx context.Context, area *entities.Area) ([]*entities.Scene, error) {
	if err := area.Validate(); err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}
	if len(c.ScenesProviders) == 0 {
		return nil, fmt.Errorf("ScenesInventory: no catalog is configured")
	}

	// geos AOI
	aoi, err := geos.FromWKT(area.Region.WKT)
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.FromWKT: %w", err)
	}

	// Search with the first successful provider
	log.Logger(ctx).Sugar().Debugf("Search scenes from %v to %v", area.TimeRange.Start, area.TimeRange.End)
	var e error
	var scenes []*entities.Scene
	for _, sceneProvider := range c.ScenesProviders {
		scenes, e = sceneProvider.SearchScenes(ctx, area, *aoi)
		if err = service.MergeErrors(false, err, e); err == nil {
			log.Logger(ctx).Sugar().Debugf("[%s] %d scenes found", sceneProvider.Name(), len(scenes))
			break
		}
		log.Logger(ctx).Sugar().Warnf("[%s] %v", sceneProvider.Name(), e)
	}
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}

	// Refine inventory
	scenes = removeDoubleEntries(scenes)
	if scenes, err = removeOutsideAOI(scenes, *aoi); err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}
	runtime.KeepAlive(aoi)

	log.Logger(ctx).Sugar().Debugf("%d scenes found", len(scenes))
	return scenes, nil
}

// removeDoubleEntries removes acquisitions that appear twice in the inventory
// A reprocessed product has a new processing baseline and product discriminator. When searching for data, both products will be found, even though they are the same acquisition.
// This routine checks of such appearance and selects the latest product, keeping the position of the first one.
// Credit: OpenSarToolkit
func removeDoubleEntries(scenes []*entities.Scene) []*entities.Scene {
	identifiers := map[string]int{}

	j := 0
	for _, scene := range scenes {
		k, ok := identifiers[scene.ProductName]
		if !ok || scene.ProductName == "" {
			scenes[j] = scene
			identifiers[scene.ProductName] = j
			j++
		} else if isMoreRecent(scene, scenes[k]) {
			scenes[k] = scene
		}
	}

	return scenes[0:j]
}

// isMoreRecent compares the ingestion dates, then the identifiers (processing baseline and discriminator)
func isMoreRecent(s1, s2 *entities.Scene) bool {
	d1, d2 := s1.Data.Metadata[common.TagIngestionDate], s2.Data.Metadata[common.TagIngestionDate]
	if d1 != d2 {
		return d1 > d2
	}
	return s1.SourceID > s2.SourceID
}

// removeOutsideAOI removes scenes that are located outside the AOI
// The search routine works over a simplified representation of the AOI.
// This may then include acquisitions that do not overlap with the AOI.
// Scenes without footprint are kept.
// Credit: OpenSarToolkit
func removeOutsideAOI(scenes []*entities.Scene, aoi geos.Geometry) ([]*entities.Scene, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	j := 0
	for i, scene := range scenes {
		intersect := true
		if scene.GeometryWKT != "" {
			aoiScene, err := geos.FromWKT(scene.GeometryWKT)
			if err != nil {
				return nil, fmt.Errorf("removeOutsideAOI.FromWKT: %w", err)
			}
			if intersect, err = paoi.Intersects(aoiScene); err != nil {
				return nil, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
			}
		}
		if intersect {
			scenes[j] = scenes[i]
			j++
		}
	}
	runtime.KeepAlive(aoi)

	return scenes[0:j], nil
}
