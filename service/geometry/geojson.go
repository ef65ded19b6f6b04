package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

// decodeRegion decodes a GeoJSON geometry, feature or feature collection into a polygon or a multipolygon.
// Points and lines are rejected: a region of interest must have an area.
func decodeRegion(data []byte) (geom.Geometry, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("decodeRegion: %w", err)
	}

	var mp geom.MultiPolygon
	switch header.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("decodeRegion: %w", err)
		}
		for i, f := range fc.Features {
			if err := appendPolygons(f.Geometry.Geometry, &mp); err != nil {
				return nil, fmt.Errorf("decodeRegion[feature %d]: %w", i, err)
			}
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decodeRegion: %w", err)
		}
		if err := appendPolygons(f.Geometry.Geometry, &mp); err != nil {
			return nil, fmt.Errorf("decodeRegion: %w", err)
		}
	default:
		var g geojson.Geometry
		if err := g.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("decodeRegion: %w", err)
		}
		if err := appendPolygons(g.Geometry, &mp); err != nil {
			return nil, fmt.Errorf("decodeRegion: %w", err)
		}
	}

	switch len(mp) {
	case 0:
		return nil, fmt.Errorf("decodeRegion: no polygon found")
	case 1:
		return geom.Polygon(mp[0]), nil
	}
	return mp, nil
}

func appendPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := appendPolygons(g, mp); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("missing geometry")
	default:
		return fmt.Errorf("%T has no area", g)
	}
	return nil
}
