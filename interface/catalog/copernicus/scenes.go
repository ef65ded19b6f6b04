package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
)

const (
	CopernicusPageLimit     = 1000
	CopernicusODataQueryURL = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products"
)

// Provider searches the Copernicus Data Space Ecosystem catalogue through its OData API
type Provider struct {
	URL   string
	Limit int
}

// NewProvider returns a provider on url (default: CopernicusODataQueryURL) with pages of limit products (default: CopernicusPageLimit)
func NewProvider(url string, limit int) *Provider {
	if url == "" {
		url = CopernicusODataQueryURL
	}
	if limit <= 0 {
		limit = CopernicusPageLimit
	}
	return &Provider{URL: url, Limit: limit}
}

func (s *Provider) Name() string { return "Copernicus" }

// Query builds the OData $filter of the search
func (s *Provider) Query(area *entities.Area, aoi geos.Geometry) (string, error) {
	mapKey := map[string]string{
		entities.FilterPlatformName:  "Collection/Name eq '%s'",
		entities.FilterProductType:   "Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and att/OData.CSC.StringAttribute/Value eq '%s')",
		entities.FilterCloudCover:    "Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value ge %s) and Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %s)",
		entities.FilterRelativeOrbit: "Attributes/OData.CSC.IntegerAttribute/any(att:att/Name eq 'relativeOrbitNumber' and att/OData.CSC.IntegerAttribute/Value eq %s)",
		entities.FilterFileName:      "contains(Name,'%s')",
	}

	productType, err := area.Filters.ProductType()
	if err != nil {
		return "", fmt.Errorf("Copernicus.Query.%w", err)
	}

	var parameters []string
	{
		aoiWKT, err := aoi.ToWKT()
		if err != nil {
			return "", fmt.Errorf("Copernicus.Query.ToWKT: %w", err)
		}
		parameters = append(parameters, "OData.CSC.Intersects(area=geography'SRID=4326;"+aoiWKT+"')")
	}

	// Append time (the end date is inclusive)
	parameters = append(parameters,
		fmt.Sprintf("ContentDate/Start ge %s", area.TimeRange.Start.UTC().Format("2006-01-02T15:04:05.000Z")),
		fmt.Sprintf("ContentDate/Start lt %s", area.TimeRange.End.UTC().AddDate(0, 0, 1).Truncate(24*time.Hour).Format("2006-01-02T15:04:05.000Z")),
		fmt.Sprintf(mapKey[entities.FilterPlatformName], "SENTINEL-2"),
		fmt.Sprintf(mapKey[entities.FilterProductType], productType))

	if min, max, ok, err := area.Filters.CloudCover(); err != nil {
		return "", fmt.Errorf("Copernicus.Query.%w", err)
	} else if ok {
		parameters = append(parameters, fmt.Sprintf(mapKey[entities.FilterCloudCover], min, max))
	}

	// Other user-defined filters, in a deterministic order
	var keys []string
	for k := range area.Filters {
		switch k {
		case entities.FilterRelativeOrbit, entities.FilterFileName:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		parameters = append(parameters, fmt.Sprintf(mapKey[k], strings.Trim(area.Filters[k], "*")))
	}

	return strings.Join(parameters, " and "), nil
}

func (s *Provider) SearchScenes(ctx context.Context, area *entities.Area, aoi geos.Geometry) ([]*entities.Scene, error) {
	// The provider is shared by concurrent searches: it is only read
	url, limit := s.URL, s.Limit
	if url == "" {
		url = CopernicusODataQueryURL
	}
	if limit <= 0 {
		limit = CopernicusPageLimit
	}
	query, err := s.Query(area, aoi)
	if err != nil {
		return nil, err
	}

	// Execute query
	rawscenes, err := queryCopernicus(ctx, url, limit, query)
	if err != nil {
		return nil, fmt.Errorf("Copernicus.searchScenes.%w", err)
	}

	// Parse results
	scenes := make([]*entities.Scene, len(rawscenes))
	for i, rawscene := range rawscenes {
		// Parse date
		date, err := time.Parse(time.RFC3339Nano, rawscene.ContentDate.BeginPosition)
		if err != nil {
			return nil, fmt.Errorf("Copernicus.searchScenes.TimeParse: %w", err)
		}
		var cloudCover float64
		if cc, ok := rawscene.AttributesMap["cloudCover"]; ok {
			if cloudCover, err = strconv.ParseFloat(cc, 64); err != nil {
				return nil, fmt.Errorf("Copernicus.searchScenes.ParseFloat(cloudCover): %w", err)
			}
		}
		var geometryWKT string
		if rawscene.Footprint.Geometry != nil {
			if geometryWKT, err = wkt.EncodeString(rawscene.Footprint.Geometry); err != nil {
				return nil, fmt.Errorf("Copernicus.searchScenes.EncodeString: %w", err)
			}
		}
		sourceID := strings.TrimSuffix(rawscene.Identifier, ".SAFE")

		scenes[i] = &entities.Scene{
			Scene: common.Scene{
				SourceID: sourceID,
				Data: common.SceneAttrs{
					UUID:       rawscene.Uuid,
					Date:       date,
					CloudCover: cloudCover,
					Metadata: map[string]string{
						common.TagSourceID:             sourceID,
						common.TagUUID:                 rawscene.Uuid,
						common.TagIngestionDate:        rawscene.PublicationDate,
						common.TagOrbitDirection:       rawscene.AttributesMap["orbitDirection"],
						common.TagRelativeOrbit:        rawscene.AttributesMap["relativeOrbitNumber"],
						common.TagOrbit:                rawscene.AttributesMap["orbitNumber"],
						common.TagProductType:          rawscene.AttributesMap["productType"],
						common.TagProcessingLevel:      rawscene.AttributesMap["processingLevel"],
						common.TagTile:                 rawscene.AttributesMap["tileId"],
						common.TagCloudCoverPercentage: rawscene.AttributesMap["cloudCover"],
						common.TagProvider:             s.Name(),
					},
				},
			},
			GeometryWKT: geometryWKT,
		}
		scenes[i].AutoFill()
	}

	return scenes, nil
}

type Hits struct {
	Uuid            string           `json:"Id"`
	Identifier      string           `json:"Name"`
	PublicationDate string           `json:"PublicationDate"`
	Footprint       geojson.Geometry `json:"GeoFootprint"`
	ContentDate     struct {
		BeginPosition string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name      string      `json:"Name"`
		Value     interface{} `json:"Value"`
		ValueType string      `json:"ValueType"`
	} `json:"Attributes"`
	AttributesMap map[string]string `json:"-"`
}

func queryCopernicus(ctx context.Context, baseURL string, limit int, query string) ([]Hits, error) {
	// Pagging
	var rawscenes []Hits
	seen := service.StringSet{}
	url := baseURL + "?$filter=" + neturl.QueryEscape(query) + fmt.Sprintf("&$orderby=ContentDate/Start&$top=%d&$expand=Attributes", limit)

	for page := 1; url != ""; page++ {
		log.Logger(ctx).Sugar().Debugf("[Copernicus] Search page %d", page)
		jsonResults, err := service.GetBody(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("queryCopernicus: %w", err)
		}

		results := struct {
			Next string `json:"@odata.nextLink"`
			Hits []Hits `json:"value"`
		}{}
		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, fmt.Errorf("queryCopernicus.Unmarshal : %w (response: %s)", err, jsonResults)
		}

		for i, hit := range results.Hits {
			results.Hits[i].AttributesMap = map[string]string{}
			for _, elem := range hit.Attributes {
				results.Hits[i].AttributesMap[elem.Name] = fmt.Sprintf("%v", elem.Value)
			}
			results.Hits[i].Attributes = nil
		}
		// The catalogue may shift between two pages
		for _, hit := range results.Hits {
			if !seen.Exists(hit.Uuid) {
				seen.Push(hit.Uuid)
				rawscenes = append(rawscenes, hit)
			}
		}

		// Is there a next page ?
		url = results.Next
		if len(results.Hits) < limit {
			break
		}
	}

	return rawscenes, nil
}
