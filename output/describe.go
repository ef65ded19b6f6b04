package output

import (
	"fmt"
	"math"

	"github.com/airbusgeo/geocube-ndvi/common"
)

// Stats summarizes the ndvi values of a time series
// Std is the sample standard deviation (NaN with less than two records).
type Stats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Describe computes the statistics of the ndvi column
func Describe(records []common.Record) Stats {
	s := Stats{Count: len(records), Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	if s.Count == 0 {
		return s
	}
	sum := 0.
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, r := range records {
		sum += r.NDVI
		s.Min = math.Min(s.Min, r.NDVI)
		s.Max = math.Max(s.Max, r.NDVI)
	}
	s.Mean = sum / float64(s.Count)
	if s.Count > 1 {
		v := 0.
		for _, r := range records {
			v += (r.NDVI - s.Mean) * (r.NDVI - s.Mean)
		}
		s.Std = math.Sqrt(v / float64(s.Count-1))
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("count %d\nmean  %.6f\nstd   %.6f\nmin   %.6f\nmax   %.6f", s.Count, s.Mean, s.Std, s.Min, s.Max)
}
