package common

import (
	"fmt"
	"time"
)

// DateFormat is the layout of the dates in the NDVI time series
const DateFormat = "2006-01-02"

type SceneAttrs struct {
	UUID       string            `json:"uuid"`
	Date       time.Time         `json:"date"`
	CloudCover float64           `json:"cloud_cover"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Scene is a product returned by a catalog query. It is not modified once returned.
type Scene struct {
	SourceID string     `json:"source_id"`
	AOI      string     `json:"aoi"`
	Data     SceneAttrs `json:"data,omitempty"`
}

// Date of an acquisition, serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day (UTC)
func NewDate(t time.Time) Date {
	t = t.UTC()
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateFormat)
}

// MarshalCSV implements gocsv.TypeMarshaller
func (d Date) MarshalCSV() (string, error) {
	return d.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return fmt.Errorf("UnmarshalCSV: %w", err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("UnmarshalJSON: date must be a string, got %s", b)
	}
	return d.UnmarshalCSV(string(b[1 : len(b)-1]))
}

// Record is one point of the NDVI time series
type Record struct {
	Date          Date    `csv:"date" json:"date"`
	NDVI          float64 `csv:"ndvi" json:"ndvi"`
	CloudCoverage float64 `csv:"cloud_coverage" json:"cloud_coverage"`
}

// NewRecord builds the record of a processed scene
func NewRecord(scene Scene, ndvi float64) Record {
	return Record{
		Date:          NewDate(scene.Data.Date),
		NDVI:          ndvi,
		CloudCoverage: scene.Data.CloudCover,
	}
}

type SceneFailure struct {
	SceneID string `json:"scene_id"`
	Status  Status `json:"status"`
	Reason  string `json:"reason"`
}

// Summary of a pipeline run
type Summary struct {
	Matched   int            `json:"matched"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Failures  []SceneFailure `json:"failures,omitempty"`
}

// Add records the terminal status of a scene
func (s *Summary) Add(sceneID string, status Status, reason error) {
	switch status {
	case StatusPROCESSED:
		s.Processed++
		return
	case StatusSKIPPED:
		s.Skipped++
	case StatusFAILED:
		s.Failed++
	default:
		return
	}
	f := SceneFailure{SceneID: sceneID, Status: status}
	if reason != nil {
		f.Reason = reason.Error()
	}
	s.Failures = append(s.Failures, f)
}
