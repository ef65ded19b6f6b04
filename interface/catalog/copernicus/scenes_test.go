package copernicus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/paulsmith/gogeos/geos"
)

const hit = `{
	"Id": "%s",
	"Name": "%s.SAFE",
	"PublicationDate": "2024-01-05T09:00:00.000Z",
	"GeoFootprint": {"type": "Polygon", "coordinates": [[[88, 22.5], [89, 22.5], [89, 23.5], [88, 23.5], [88, 22.5]]]},
	"ContentDate": {"Start": "2024-01-05T04:31:51.024Z"},
	"Attributes": [
		{"Name": "cloudCover", "Value": %v, "ValueType": "Double"},
		{"Name": "productType", "Value": "S2MSI2A", "ValueType": "String"},
		{"Name": "relativeOrbitNumber", "Value": 133, "ValueType": "Integer"},
		{"Name": "tileId", "Value": "45QYF", "ValueType": "String"}
	]
}`

func testArea(t *testing.T) (*entities.Area, *geos.Geometry) {
	region, err := entities.PointRegion(88.39, 22.90, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	aoi, err := geos.FromWKT(region.WKT)
	if err != nil {
		t.Fatal(err)
	}
	return &entities.Area{
		Region:        region,
		TimeRange:     entities.TimeRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		Constellation: "Sentinel-2",
		Filters:       entities.Filters{entities.FilterProcessingLevel: "Level-2A", entities.FilterCloudCover: "[0 TO 20]"},
	}, aoi
}

func TestQuery(t *testing.T) {
	area, aoi := testArea(t)
	query, err := (&Provider{}).Query(area, aoi)
	if err != nil {
		t.Fatal(err)
	}
	for _, expected := range []string{
		"Collection/Name eq 'SENTINEL-2'",
		"att/OData.CSC.StringAttribute/Value eq 'S2MSI2A'",
		"att/OData.CSC.DoubleAttribute/Value ge 0)",
		"att/OData.CSC.DoubleAttribute/Value le 20)",
		"ContentDate/Start ge 2024-01-01T00:00:00.000Z",
		"ContentDate/Start lt 2024-03-02T00:00:00.000Z",
		"OData.CSC.Intersects(area=geography'SRID=4326;POLYGON",
	} {
		if !strings.Contains(query, expected) {
			t.Errorf("query must contain %s: %s", expected, query)
		}
	}
}

func TestSearchScenes(t *testing.T) {
	ids := []string{
		"S2A_MSIL2A_20240105T043151_N0510_R133_T45QYF_20240105T081224",
		"S2B_MSIL2A_20240110T043129_N0510_R133_T45QYF_20240110T074513",
		"S2A_MSIL2A_20240115T043101_N0510_R133_T45QYF_20240115T081757",
	}
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if !strings.Contains(r.URL.Query().Get("$filter"), "S2MSI2A") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Two results per page
		if r.URL.Query().Get("$skip") == "" {
			fmt.Fprintf(w, `{"@odata.nextLink": "http://%s/?$filter=S2MSI2A&$skip=2", "value": [%s, %s]}`, r.Host, fmt.Sprintf(hit, "uuid0", ids[0], 12.5), fmt.Sprintf(hit, "uuid1", ids[1], 3))
			return
		}
		fmt.Fprintf(w, `{"value": [%s]}`, fmt.Sprintf(hit, "uuid2", ids[2], 0))
	}))
	defer server.Close()

	area, aoi := testArea(t)
	p := &Provider{URL: server.URL, Limit: 2}
	scenes, err := p.SearchScenes(context.Background(), area, *aoi)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 pages, got %d", calls)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	for i, s := range scenes {
		if s.SourceID != ids[i] {
			t.Errorf("expected %s, got %s", ids[i], s.SourceID)
		}
	}
	if scenes[0].Data.CloudCover != 12.5 || scenes[0].Data.UUID != "uuid0" {
		t.Errorf("wrong scene data %+v", scenes[0].Data)
	}
	if scenes[0].Data.Date.Format("2006-01-02") != "2024-01-05" {
		t.Errorf("wrong date %s", scenes[0].Data.Date)
	}
	if !strings.HasPrefix(scenes[0].GeometryWKT, "POLYGON") {
		t.Errorf("wrong footprint %s", scenes[0].GeometryWKT)
	}
	if scenes[0].ProductName != "S2A_MSIL2A_20240105T043151_R133_T45QYF" {
		t.Errorf("wrong product name %s", scenes[0].ProductName)
	}
}

func TestSearchScenesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	area, aoi := testArea(t)
	if _, err := (&Provider{URL: server.URL}).SearchScenes(context.Background(), area, *aoi); err == nil {
		t.Error("expected an error")
	}
}

func TestNewProvider(t *testing.T) {
	p := NewProvider("", 0)
	if p.URL != CopernicusODataQueryURL || p.Limit != CopernicusPageLimit {
		t.Errorf("wrong defaults %+v", p)
	}
	p = NewProvider("http://localhost/odata", 10)
	if p.URL != "http://localhost/odata" || p.Limit != 10 {
		t.Errorf("wrong provider %+v", p)
	}
}

func TestSearchScenesConcurrent(t *testing.T) {
	id := "S2A_MSIL2A_20240105T043151_N0510_R133_T45QYF_20240105T081224"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$top") != fmt.Sprint(CopernicusPageLimit) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"value": [%s]}`, fmt.Sprintf(hit, "uuid0", id, 1))
	}))
	defer server.Close()

	area, aoi := testArea(t)
	p := &Provider{URL: server.URL}
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scenes, err := p.SearchScenes(context.Background(), area, *aoi)
			if err == nil && len(scenes) != 1 {
				err = fmt.Errorf("expected 1 scene, got %d", len(scenes))
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if p.Limit != 0 || p.URL != server.URL {
		t.Errorf("provider modified by the search: %+v", p)
	}
}
