package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/gocarina/gocsv"
)

// CSVSink writes the records to a CSV file with the header date,ndvi,cloud_coverage
// An empty series produces a file with the header only.
type CSVSink struct {
	Path string
}

// Write implements Sink
func (s CSVSink) Write(ctx context.Context, records []common.Record) error {
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("CSVSink.MkdirAll: %w", err)
		}
	}
	file, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("CSVSink.Create: %w", err)
	}
	if err := WriteCSV(file, records); err != nil {
		file.Close()
		return fmt.Errorf("CSVSink.%w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("CSVSink.Close: %w", err)
	}
	log.Logger(ctx).Sugar().Infof("%d records written to %s", len(records), s.Path)
	return nil
}

// WriteCSV serializes the records with their header
func WriteCSV(w io.Writer, records []common.Record) error {
	if records == nil {
		records = []common.Record{}
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// ReadCSV reads a file written by CSVSink
func ReadCSV(path string) ([]common.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	defer file.Close()

	records := []common.Record{}
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return nil, fmt.Errorf("ReadCSV.UnmarshalFile: %w", err)
	}
	return records, nil
}
