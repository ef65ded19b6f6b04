package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service/geometry"
)

// Region of interest, as a WKT polygon in EPSG:4326
type Region struct {
	WKT string `json:"wkt"`
}

// PointRegion returns the region covered by a buffer of radius degrees around (lon, lat)
func PointRegion(lon, lat, radius float64) (Region, error) {
	wkt, err := geometry.PointBuffer(lon, lat, radius)
	if err != nil {
		return Region{}, fmt.Errorf("PointRegion.%w", err)
	}
	return Region{WKT: wkt}, nil
}

// GeoJSONRegion returns the region covered by a GeoJSON geometry
func GeoJSONRegion(data []byte) (Region, error) {
	wkt, err := geometry.GeoJSONToWKT(data)
	if err != nil {
		return Region{}, fmt.Errorf("GeoJSONRegion.%w", err)
	}
	return Region{WKT: wkt}, nil
}

// TimeRange is an inclusive interval of acquisition dates
type TimeRange struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func (t TimeRange) Validate() error {
	if t.Start.IsZero() || t.End.IsZero() {
		return fmt.Errorf("TimeRange: start and end must be defined")
	}
	if t.Start.After(t.End) {
		return fmt.Errorf("TimeRange: start (%s) is after end (%s)", t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339))
	}
	return nil
}

// Filters are the additional criteria passed to the catalog (cloudcoverpercentage, processinglevel, producttype...)
type Filters map[string]string

// Filters keys
const (
	FilterPlatformName     = "platformname"
	FilterProductType      = "producttype"
	FilterProcessingLevel  = "processinglevel"
	FilterCloudCover       = "cloudcoverpercentage"
	FilterFileName         = "filename"
	FilterRelativeOrbit    = "relativeorbitnumber"
	DefaultProcessingLevel = "Level-2A"
)

var processingLevels = map[string]string{
	"level-1c": "S2MSI1C",
	"level-2a": "S2MSI2A",
}

// ProductType returns the Sentinel-2 product type from the producttype or processinglevel filters
func (f Filters) ProductType() (string, error) {
	if pt, ok := f[FilterProductType]; ok {
		return pt, nil
	}
	level, ok := f[FilterProcessingLevel]
	if !ok {
		level = DefaultProcessingLevel
	}
	pt, ok := processingLevels[strings.ToLower(level)]
	if !ok {
		return "", fmt.Errorf("ProductType: unsupported processing level: %s", level)
	}
	return pt, nil
}

// CloudCover returns the bounds of the cloudcoverpercentage filter formatted as "[min TO max]"
func (f Filters) CloudCover() (min, max string, ok bool, err error) {
	v, ok := f[FilterCloudCover]
	if !ok {
		return "", "", false, nil
	}
	vs := strings.Split(strings.Trim(strings.TrimSpace(v), "[]"), " TO ")
	if len(vs) != 2 {
		return "", "", true, fmt.Errorf("CloudCover: cloudcoverpercentage must be '[Min TO Max]' (got %s)", v)
	}
	return strings.TrimSpace(vs[0]), strings.TrimSpace(vs[1]), true, nil
}

// Area is the input of the catalog
type Area struct {
	Region        Region    `json:"region"`
	TimeRange     TimeRange `json:"time_range"`
	Constellation string    `json:"constellation"`
	Filters       Filters   `json:"filters"`
}

// Validate checks the region, the time range, the constellation and the filters
func (a Area) Validate() error {
	if err := geometry.ValidateWKT(a.Region.WKT); err != nil {
		return fmt.Errorf("Area.%w", err)
	}
	if err := a.TimeRange.Validate(); err != nil {
		return fmt.Errorf("Area.%w", err)
	}
	if common.GetConstellationFromString(a.Constellation) != common.Sentinel2 {
		return fmt.Errorf("Area: unsupported constellation: %s", a.Constellation)
	}
	if _, err := a.Filters.ProductType(); err != nil {
		return fmt.Errorf("Area.%w", err)
	}
	if _, _, _, err := a.Filters.CloudCover(); err != nil {
		return fmt.Errorf("Area.%w", err)
	}
	return nil
}

// Scene is a specialisation of common.Scene for the catalog
type Scene struct {
	common.Scene
	ProductName string // SourceID without the processing baseline nor the product discriminator (to remove double entries)
	GeometryWKT string
}

// AutoFill fills ProductName, Satellite, Constellation
func (s *Scene) AutoFill() {
	if s.Data.Metadata == nil {
		s.Data.Metadata = map[string]string{}
	}
	var constellation string
	switch common.GetConstellationFromProductId(s.SourceID) {
	case common.Sentinel2:
		constellation = "SENTINEL2"
		if len(s.SourceID) >= 44 && s.SourceID[10] == '_' {
			s.ProductName = s.SourceID[0:26] + s.SourceID[32:44]
		}
	default:
		return
	}
	if s.ProductName == "" {
		s.ProductName = s.SourceID
	}
	s.Data.Metadata[common.TagConstellation] = constellation
	s.Data.Metadata[common.TagSatellite] = constellation + s.SourceID[2:3]
}
