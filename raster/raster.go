// Package raster defines the in-memory band representation and the reader abstraction used to load bands from files.
package raster

import (
	"fmt"
	"math"
)

// Band is a 2D array of float64 stored row-major. NaN marks a pixel without data.
type Band struct {
	Width  int
	Height int
	Data   []float64
}

// NewBand allocates a band of width x height pixels initialized to 0
func NewBand(width, height int) Band {
	return Band{Width: width, Height: height, Data: make([]float64, width*height)}
}

// FromRows builds a band from a slice of rows of equal length
func FromRows(rows [][]float64) (Band, error) {
	if len(rows) == 0 {
		return Band{}, nil
	}
	b := Band{Width: len(rows[0]), Height: len(rows), Data: make([]float64, 0, len(rows)*len(rows[0]))}
	for i, row := range rows {
		if len(row) != b.Width {
			return Band{}, fmt.Errorf("FromRows: row %d has %d pixels, expected %d", i, len(row), b.Width)
		}
		b.Data = append(b.Data, row...)
	}
	return b, nil
}

func (b Band) At(x, y int) float64 {
	return b.Data[y*b.Width+x]
}

// SameShape returns whether b and o have the same dimensions
func (b Band) SameShape(o Band) bool {
	return b.Width == o.Width && b.Height == o.Height && len(b.Data) == len(o.Data)
}

// MaskValue replaces every pixel equal to value by NaN
func (b Band) MaskValue(value float64) {
	for i, v := range b.Data {
		if v == value {
			b.Data[i] = math.NaN()
		}
	}
}

// Dataset is an opened raster file
type Dataset interface {
	// Size returns the dimensions of the n-th band (starting at 1)
	Size(n int) (width, height int, err error)
	// ReadRows reads count rows of the n-th band, starting at row, as float64
	ReadRows(n, row, count int) (Band, error)
	Close() error
}

// ReadBand reads the whole n-th band of ds
func ReadBand(ds Dataset, n int) (Band, error) {
	_, height, err := ds.Size(n)
	if err != nil {
		return Band{}, err
	}
	return ds.ReadRows(n, 0, height)
}

// Reader opens raster files
type Reader interface {
	Open(path string) (Dataset, error)
}
