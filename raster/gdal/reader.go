// Package gdal reads raster bands (JPEG2000, GeoTIFF...) through GDAL.
package gdal

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/geocube-ndvi/raster"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

// Reader implements raster.Reader with godal
type Reader struct {
	maskNoData bool
}

type Option func(*Reader)

// WithNoData maps the nodata value declared by the band to NaN
func WithNoData() Option {
	return func(r *Reader) { r.maskNoData = true }
}

// NewReader registers the GDAL drivers and returns a reader
func NewReader(opts ...Option) *Reader {
	registerOnce.Do(godal.RegisterAll)
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open implements raster.Reader
func (r *Reader) Open(path string) (raster.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec <= godal.CE_Warning {
			log.Logger(context.Background()).Sugar().Debugf("gdal %s: %s", path, msg)
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return nil, service.ErrDecode{File: path, Err: err}
	}
	return &dataset{path: path, ds: ds, maskNoData: r.maskNoData}, nil
}

type dataset struct {
	path       string
	ds         *godal.Dataset
	maskNoData bool
}

func (d *dataset) band(n int) (godal.Band, error) {
	bands := d.ds.Bands()
	if n < 1 || n > len(bands) {
		return godal.Band{}, service.ErrDecode{File: d.path, Err: fmt.Errorf("band %d out of range [1, %d]", n, len(bands))}
	}
	return bands[n-1], nil
}

func (d *dataset) Size(n int) (int, int, error) {
	band, err := d.band(n)
	if err != nil {
		return 0, 0, err
	}
	st := band.Structure()
	return st.SizeX, st.SizeY, nil
}

// ReadRows reads a strip of the band, so that a 10980x10980 scene never has to be loaded at once
func (d *dataset) ReadRows(n, row, count int) (raster.Band, error) {
	band, err := d.band(n)
	if err != nil {
		return raster.Band{}, err
	}
	st := band.Structure()
	if row < 0 || count < 0 || row+count > st.SizeY {
		return raster.Band{}, service.ErrDecode{File: d.path, Err: fmt.Errorf("rows [%d, %d) out of range [0, %d)", row, row+count, st.SizeY)}
	}
	b := raster.NewBand(st.SizeX, count)
	if count == 0 {
		return b, nil
	}
	if err := band.Read(0, row, b.Data, st.SizeX, count); err != nil {
		return raster.Band{}, service.ErrDecode{File: d.path, Err: fmt.Errorf("ReadRows.Read: %w", err)}
	}
	if d.maskNoData {
		if nodata, ok := band.NoData(); ok {
			b.MaskValue(nodata)
		}
	}
	return b, nil
}

func (d *dataset) Close() error {
	return d.ds.Close()
}
