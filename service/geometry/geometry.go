package geometry

import (
	"fmt"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// Generates a geom.Geometry from a geos.Geometry
func GeosToGeom(g *geos.Geometry) (geom.Geometry, error) {
	wkt, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.ToWKT: %w", err)
	}
	geometry, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.DecodeString: %w", err)
	}

	return geometry, nil
}

// PointBuffer returns the WKT of the polygon approximating the disk of the given radius (in degrees) centered on (lon, lat)
func PointBuffer(lon, lat, radius float64) (string, error) {
	if radius <= 0 {
		return "", fmt.Errorf("PointBuffer: radius must be positive (got %f)", radius)
	}
	point, err := geos.NewPoint(geos.NewCoord(lon, lat))
	if err != nil {
		return "", fmt.Errorf("PointBuffer.NewPoint: %w", err)
	}
	disk, err := point.Buffer(radius)
	if err != nil {
		return "", fmt.Errorf("PointBuffer.Buffer: %w", err)
	}
	wkt, err := disk.ToWKT()
	if err != nil {
		return "", fmt.Errorf("PointBuffer.ToWKT: %w", err)
	}
	return wkt, nil
}

// GeoJSONToWKT converts a GeoJSON region to WKT. The polygons of features and collections are merged into a multipolygon
func GeoJSONToWKT(data []byte) (string, error) {
	g, err := decodeRegion(data)
	if err != nil {
		return "", fmt.Errorf("GeoJSONToWKT.%w", err)
	}
	wkt, err := geomwkt.EncodeString(g)
	if err != nil {
		return "", fmt.Errorf("GeoJSONToWKT.Encode: %w", err)
	}
	return wkt, nil
}

// ConvexHullWKT returns the WKT of the convex hull of the given WKT geometry
func ConvexHullWKT(wkt string) (string, error) {
	g, err := geos.FromWKT(wkt)
	if err != nil {
		return "", fmt.Errorf("ConvexHullWKT.FromWKT: %w", err)
	}
	hull, err := g.ConvexHull()
	if err != nil {
		return "", fmt.Errorf("ConvexHullWKT.ConvexHull: %w", err)
	}
	return hull.ToWKT()
}

// ValidateWKT checks that wkt is a valid, non-empty areal geometry
func ValidateWKT(wkt string) error {
	g, err := geos.FromWKT(wkt)
	if err != nil {
		return fmt.Errorf("ValidateWKT.FromWKT: %w", err)
	}
	area, err := g.Area()
	if err != nil {
		return fmt.Errorf("ValidateWKT.Area: %w", err)
	}
	if area <= 0 {
		return fmt.Errorf("ValidateWKT: geometry has no area")
	}
	return nil
}
