package entities

import (
	"testing"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
)

func TestTimeRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := (TimeRange{Start: start, End: end}).Validate(); err != nil {
		t.Error(err)
	}
	if err := (TimeRange{Start: start, End: start}).Validate(); err != nil {
		t.Errorf("a single day range is valid: %v", err)
	}
	if err := (TimeRange{Start: end, End: start}).Validate(); err == nil {
		t.Error("start after end must fail")
	}
	if err := (TimeRange{End: end}).Validate(); err == nil {
		t.Error("undefined start must fail")
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		filters Filters
		pt      string
		fail    bool
	}{
		{Filters{}, "S2MSI2A", false},
		{Filters{FilterProcessingLevel: "Level-1C"}, "S2MSI1C", false},
		{Filters{FilterProcessingLevel: "Level-2A", FilterProductType: "S2MSI2Ap"}, "S2MSI2Ap", false},
		{Filters{FilterProcessingLevel: "Level-3"}, "", true},
	}
	for _, tt := range tests {
		pt, err := tt.filters.ProductType()
		if (err != nil) != tt.fail || pt != tt.pt {
			t.Errorf("%v: expected %s (fail=%v), got %s %v", tt.filters, tt.pt, tt.fail, pt, err)
		}
	}

	min, max, ok, err := Filters{FilterCloudCover: "[0 TO 20]"}.CloudCover()
	if err != nil || !ok || min != "0" || max != "20" {
		t.Errorf("wrong cloud cover %s %s %v %v", min, max, ok, err)
	}
	if _, _, ok, _ := (Filters{}).CloudCover(); ok {
		t.Error("no cloud cover filter")
	}
	if _, _, _, err := (Filters{FilterCloudCover: "20"}).CloudCover(); err == nil {
		t.Error("malformed cloud cover must fail")
	}
}

func TestAreaValidate(t *testing.T) {
	region, err := PointRegion(88.39, 22.90, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	area := Area{
		Region:        region,
		TimeRange:     TimeRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		Constellation: "Sentinel-2",
		Filters:       Filters{FilterProcessingLevel: "Level-2A", FilterCloudCover: "[0 TO 20]"},
	}
	if err := area.Validate(); err != nil {
		t.Error(err)
	}

	wrong := area
	wrong.Constellation = "Landsat"
	if err := wrong.Validate(); err == nil {
		t.Error("unsupported constellation must fail")
	}
	wrong = area
	wrong.Region = Region{WKT: "POLYGON ((0 0"}
	if err := wrong.Validate(); err == nil {
		t.Error("invalid region must fail")
	}
	wrong = area
	wrong.TimeRange.Start, wrong.TimeRange.End = wrong.TimeRange.End, wrong.TimeRange.Start
	if err := wrong.Validate(); err == nil {
		t.Error("inverted time range must fail")
	}
}

func TestAutoFill(t *testing.T) {
	s := Scene{Scene: common.Scene{SourceID: "S2A_MSIL2A_20240105T043151_N0510_R133_T45QYF_20240105T081224"}}
	s.AutoFill()
	if s.ProductName != "S2A_MSIL2A_20240105T043151_R133_T45QYF" {
		t.Errorf("wrong product name %s", s.ProductName)
	}
	if s.Data.Metadata[common.TagSatellite] != "SENTINEL2A" {
		t.Errorf("wrong satellite %s", s.Data.Metadata[common.TagSatellite])
	}
}
