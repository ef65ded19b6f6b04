package output

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/fogleman/gg"
)

const (
	DefaultPlotWidth  = 800
	DefaultPlotHeight = 400
	plotMargin        = 50
)

// PlotSink renders the NDVI time series as a PNG line chart (ndvi in [-1, 1] against the date)
type PlotSink struct {
	Path          string
	Width, Height int
}

// Write implements Sink
func (s PlotSink) Write(ctx context.Context, records []common.Record) error {
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("PlotSink.MkdirAll: %w", err)
		}
	}
	if err := s.draw(records).SavePNG(s.Path); err != nil {
		return fmt.Errorf("PlotSink.SavePNG: %w", err)
	}
	log.Logger(ctx).Sugar().Infof("time series plotted in %s", s.Path)
	return nil
}

func (s PlotSink) draw(records []common.Record) *gg.Context {
	width, height := s.Width, s.Height
	if width <= 2*plotMargin {
		width = DefaultPlotWidth
	}
	if height <= 2*plotMargin {
		height = DefaultPlotHeight
	}
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	left, right := float64(plotMargin), float64(width-plotMargin)
	top, bottom := float64(plotMargin), float64(height-plotMargin)

	// Axes and the ndvi=0 line
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, bottom)
	dc.DrawLine(left, bottom, right, bottom)
	dc.Stroke()
	y := func(ndvi float64) float64 {
		return bottom - (math.Max(-1, math.Min(1, ndvi))+1)/2*(bottom-top)
	}
	dc.SetRGB(0.7, 0.7, 0.7)
	dc.DrawLine(left, y(0), right, y(0))
	dc.Stroke()
	dc.SetRGB(0, 0, 0)
	for _, v := range []float64{-1, 0, 1} {
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", v), left-10, y(v), 1, 0.5)
	}
	dc.DrawStringAnchored("NDVI", float64(width)/2, top/2, 0.5, 0.5)
	if len(records) == 0 {
		return dc
	}

	// Dates
	first, last := records[0].Date.Time, records[0].Date.Time
	for _, r := range records {
		if r.Date.Before(first) {
			first = r.Date.Time
		}
		if r.Date.After(last) {
			last = r.Date.Time
		}
	}
	span := last.Sub(first).Seconds()
	x := func(r common.Record) float64 {
		if span == 0 {
			return (left + right) / 2
		}
		return left + r.Date.Sub(first).Seconds()/span*(right-left)
	}
	dc.DrawStringAnchored(first.Format(common.DateFormat), left, bottom+15, 0, 0.5)
	if span > 0 {
		dc.DrawStringAnchored(last.Format(common.DateFormat), right, bottom+15, 1, 0.5)
	}

	// Series
	dc.SetRGB(0, 0.5, 0)
	dc.SetLineWidth(2)
	for i, r := range records {
		if i == 0 {
			dc.MoveTo(x(r), y(r.NDVI))
		} else {
			dc.LineTo(x(r), y(r.NDVI))
		}
	}
	dc.Stroke()
	for _, r := range records {
		dc.DrawCircle(x(r), y(r.NDVI), 3)
		dc.Fill()
	}
	return dc
}
