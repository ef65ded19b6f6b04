package scihub

import (
	"context"
	"encoding/xml"
	"fmt"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

const (
	DHUSQueryURL = "https://scihub.copernicus.eu/dhus/search"
	PageRows     = 100
)

// Provider searches a Data Hub (DHuS) OpenSearch endpoint
type Provider struct {
	Username string
	Password string
	URL      string
}

// NewProvider returns a provider on url (default: DHUSQueryURL)
func NewProvider(username, password, url string) *Provider {
	if url == "" {
		url = DHUSQueryURL
	}
	return &Provider{Username: username, Password: password, URL: url}
}

func (s *Provider) Name() string { return "Scihub" }

// Query builds the solr-like query of the search
func (s *Provider) Query(area *entities.Area, aoi geos.Geometry) (string, error) {
	var parameters []string
	{
		convexhull, err := aoi.ConvexHull()
		if err != nil {
			return "", fmt.Errorf("Scihub.Query.ConvexHull: %w", err)
		}
		convexhullWKT, err := convexhull.ToWKT()
		if err != nil {
			return "", fmt.Errorf("Scihub.Query.ToWKT: %w", err)
		}
		parameters = append(parameters, "( footprint:\"Intersects("+convexhullWKT+")\")")
	}

	// Append time
	{
		startDate := area.TimeRange.Start.Format("2006-01-02") + "T00:00:00.000Z"
		endDate := area.TimeRange.End.Format("2006-01-02") + "T23:59:59.999Z"
		parameters = append(parameters, fmt.Sprintf("(beginPosition:[ %s TO %s ] )", startDate, endDate))
	}

	productType, err := area.Filters.ProductType()
	if err != nil {
		return "", fmt.Errorf("Scihub.Query.%w", err)
	}
	params := map[string]string{
		entities.FilterPlatformName: "Sentinel-2",
		entities.FilterProductType:  productType,
	}
	for k, v := range area.Filters {
		switch k {
		case entities.FilterProcessingLevel, entities.FilterPlatformName, entities.FilterProductType:
		default:
			params[k] = v
		}
	}
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parameters = append(parameters, fmt.Sprintf("( %s:%s )", k, params[k]))
	}

	return "(" + strings.Join(parameters, " AND ") + ")", nil
}

func (s *Provider) SearchScenes(ctx context.Context, area *entities.Area, aoi geos.Geometry) ([]*entities.Scene, error) {
	url := s.URL
	if url == "" {
		url = DHUSQueryURL
	}
	query, err := s.Query(area, aoi)
	if err != nil {
		return nil, err
	}

	// Execute query
	rawscenes, err := s.queryScihub(ctx, url, query)
	if err != nil {
		return nil, fmt.Errorf("Scihub.searchScenes.%w", err)
	}

	// Parse results
	scenes := make([]*entities.Scene, len(rawscenes))
	for i, rawscene := range rawscenes {
		// Check for required elements
		requiredElements := []string{"identifier", "beginposition", "uuid", "footprint"}
		for _, elem := range requiredElements {
			if _, ok := rawscene[elem]; !ok {
				return nil, fmt.Errorf("Scihub.searchScenes: Missing element %s in results", elem)
			}
		}

		// Parse date
		date, err := time.Parse(time.RFC3339Nano, rawscene["beginposition"])
		if err != nil {
			return nil, fmt.Errorf("Scihub.searchScenes.TimeParse: %w", err)
		}

		var cloudCover float64
		if cc, ok := rawscene["cloudcoverpercentage"]; ok {
			if cloudCover, err = strconv.ParseFloat(cc, 64); err != nil {
				return nil, fmt.Errorf("Scihub.searchScenes.ParseFloat(cloudcoverpercentage): %w", err)
			}
		}

		// Parse aoi
		wktAOI := strings.ToUpper(rawscene["footprint"])
		if _, err := wkt.DecodeString(wktAOI); err != nil {
			return nil, fmt.Errorf("Scihub.searchScenes.wktDecodeString[%s]: %w", wktAOI, err)
		}

		scenes[i] = &entities.Scene{
			Scene: common.Scene{
				SourceID: rawscene["identifier"],
				Data: common.SceneAttrs{
					UUID:       rawscene["uuid"],
					Date:       date,
					CloudCover: cloudCover,
					Metadata: map[string]string{
						common.TagSourceID:             rawscene["identifier"],
						common.TagUUID:                 rawscene["uuid"],
						common.TagIngestionDate:        rawscene["ingestiondate"],
						common.TagOrbitDirection:       rawscene["orbitdirection"],
						common.TagRelativeOrbit:        rawscene["relativeorbitnumber"],
						common.TagOrbit:                rawscene["orbitnumber"],
						common.TagProductType:          rawscene["producttype"],
						common.TagProcessingLevel:      rawscene["processinglevel"],
						common.TagTile:                 rawscene["tileid"],
						common.TagCloudCoverPercentage: rawscene["cloudcoverpercentage"],
						common.TagProvider:             s.Name(),
					},
				},
			},
			GeometryWKT: wktAOI,
		}
		scenes[i].AutoFill()
	}

	return scenes, nil
}

func (s *Provider) queryScihub(ctx context.Context, baseURL, query string) ([]map[string]string, error) {
	// Pagging
	var rawscenes []map[string]string
	nextPage := true
	query = neturl.QueryEscape(query)
	totalPages := "?"
	for index := 0; nextPage; index += PageRows {
		log.Logger(ctx).Sugar().Debugf("[Scihub] Search page %d/%s", index/PageRows+1, totalPages)
		url := baseURL + "?q=" + query + fmt.Sprintf("&rows=%d&start=%d", PageRows, index)
		xmlResults, err := service.HTTPGetWithAuth(ctx, url, s.Username, s.Password, "")
		if err != nil {
			return nil, fmt.Errorf("queryScihub.%w", err)
		}

		// XML Element structure:
		type Element struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		}

		// Read results to retrieve scenes
		results := struct {
			XMLName xml.Name `xml:"feed"`
			Error   struct {
				Code    string `xml:"code"`
				Message string `xml:"message"`
			} `xml:"error"`
			Entries []struct {
				StrElements    []Element `xml:"str"`
				IntElements    []Element `xml:"int"`
				DoubleElements []Element `xml:"double"`
				DateElements   []Element `xml:"date"`
			} `xml:"entry"`
			Links []struct {
				Rel  string `xml:"rel,attr"`
				Href string `xml:"href,attr"`
			} `xml:"link"`
			TotalResults int `xml:"totalResults"`
		}{}
		if err := xml.Unmarshal(xmlResults, &results); err != nil {
			return nil, fmt.Errorf("queryScihub.Unmarshal : %w (response: %s)", err, xmlResults)
		}
		if results.Error.Code != "" {
			return nil, fmt.Errorf("queryScihub : %s[code:%s]", results.Error.Message, results.Error.Code)
		}

		// Merge all elements of the scene into a dict
		for _, entry := range results.Entries {
			rawscene := map[string]string{}
			for _, elems := range [][]Element{entry.StrElements, entry.IntElements, entry.DoubleElements, entry.DateElements} {
				for _, elem := range elems {
					rawscene[elem.Name] = elem.Value
				}
			}
			rawscenes = append(rawscenes, rawscene)
		}

		// Is there a next page ?
		nextPage = false
		for _, link := range results.Links {
			if strings.ToLower(link.Rel) == "next" && link.Href != "" {
				nextPage = true
			}
		}
		if results.TotalResults != 0 {
			totalPages = strconv.Itoa((results.TotalResults-1)/PageRows + 1)
			if index+PageRows >= results.TotalResults {
				nextPage = false
			}
		}
	}

	return rawscenes, nil
}
