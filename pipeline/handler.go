package pipeline

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/output"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/araddon/dateparse"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Default radius of the region around the point, in degrees
const DefaultRadius = 0.1

// NewHandler serves the time series of an area as CSV:
//
//	GET /ndvi?lon=88.39&lat=22.90&radius=0.1&start=2024-01-01&end=2024-03-01&cloud=20&level=Level-2A
//
// Missing parameters are taken from defaults (and DefaultRadius).
func (p *Pipeline) NewHandler(defaults entities.Area) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ndvi", func(w http.ResponseWriter, req *http.Request) {
		p.NDVIHandler(w, req, defaults)
	}).Methods("GET")
	return handlers.RecoveryHandler()(r)
}

// NDVIHandler runs the pipeline on the area of the request.
// Concurrent requests are served one after the other.
func (p *Pipeline) NDVIHandler(w http.ResponseWriter, req *http.Request, defaults entities.Area) {
	ctx := req.Context()
	area, err := parseArea(req, defaults)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}
	if err := area.Validate(); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	p.mu.Lock()
	records, summary, err := p.Run(ctx, area)
	p.mu.Unlock()
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("NDVIHandler: %v", err)
		if service.IsQuery(err) {
			w.WriteHeader(502)
		} else {
			w.WriteHeader(500)
		}
		fmt.Fprintf(w, "%v", err)
		return
	}

	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, records); err != nil {
		w.WriteHeader(500)
		fmt.Fprintf(w, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Ndvi-Matched", strconv.Itoa(summary.Matched))
	w.Header().Set("X-Ndvi-Processed", strconv.Itoa(summary.Processed))
	w.Header().Set("X-Ndvi-Skipped", strconv.Itoa(summary.Skipped))
	w.Header().Set("X-Ndvi-Failed", strconv.Itoa(summary.Failed))
	w.WriteHeader(200)
	w.Write(buf.Bytes())
}

func parseArea(req *http.Request, defaults entities.Area) (entities.Area, error) {
	q := req.URL.Query()
	area := defaults
	area.Filters = entities.Filters{}
	for k, v := range defaults.Filters {
		area.Filters[k] = v
	}

	if q.Has("lon") || q.Has("lat") || q.Has("radius") {
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			return area, fmt.Errorf("lon: %w", err)
		}
		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			return area, fmt.Errorf("lat: %w", err)
		}
		radius := DefaultRadius
		if q.Has("radius") {
			if radius, err = strconv.ParseFloat(q.Get("radius"), 64); err != nil {
				return area, fmt.Errorf("radius: %w", err)
			}
		}
		if area.Region, err = entities.PointRegion(lon, lat, radius); err != nil {
			return area, err
		}
	}

	for key, t := range map[string]*time.Time{"start": &area.TimeRange.Start, "end": &area.TimeRange.End} {
		if !q.Has(key) {
			continue
		}
		d, err := dateparse.ParseIn(q.Get(key), time.UTC)
		if err != nil {
			return area, fmt.Errorf("%s: %w", key, err)
		}
		*t = d
	}

	if q.Has("cloud") {
		cloud, err := strconv.ParseFloat(q.Get("cloud"), 64)
		if err != nil {
			return area, fmt.Errorf("cloud: %w", err)
		}
		area.Filters[entities.FilterCloudCover] = fmt.Sprintf("[0 TO %g]", cloud)
	}
	if q.Has("level") {
		area.Filters[entities.FilterProcessingLevel] = q.Get("level")
		delete(area.Filters, entities.FilterProductType)
	}
	return area, nil
}
