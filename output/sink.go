package output

import (
	"context"
	"fmt"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
)

// Sink receives the NDVI time series once all the scenes have been processed
type Sink interface {
	Write(ctx context.Context, records []common.Record) error
}

// MultiSink writes the records to each sink, in order.
// All the sinks are called, the errors are merged.
type MultiSink []Sink

// Write implements Sink
func (ms MultiSink) Write(ctx context.Context, records []common.Record) error {
	var err error
	for _, s := range ms {
		if e := s.Write(ctx, records); e != nil {
			err = service.MergeErrors(true, err, e)
		}
	}
	if err != nil {
		return fmt.Errorf("MultiSink.%w", err)
	}
	return nil
}
