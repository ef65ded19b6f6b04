package processor

import (
	"fmt"
	"math"

	"github.com/airbusgeo/geocube-ndvi/raster"
	"github.com/airbusgeo/geocube-ndvi/service"
)

// NDVI computes (nir-red)/(nir+red) pixel by pixel.
// A pixel is NaN if nir+red == 0 or if one of the inputs is NaN.
func NDVI(red, nir raster.Band) (raster.Band, error) {
	if !red.SameShape(nir) {
		return raster.Band{}, fmt.Errorf("NDVI: shape mismatch: red is %dx%d, nir is %dx%d", red.Width, red.Height, nir.Width, nir.Height)
	}
	index := raster.NewBand(red.Width, red.Height)
	for i := range index.Data {
		r, n := red.Data[i], nir.Data[i]
		if sum := n + r; sum == 0 {
			index.Data[i] = math.NaN()
		} else {
			index.Data[i] = (n - r) / sum
		}
	}
	return index, nil
}

// Mean returns the arithmetic mean of the finite pixels of index
func Mean(index raster.Band) (float64, error) {
	var acc meanAccumulator
	acc.Add(index)
	return acc.Mean()
}

// meanAccumulator sums the finite pixels of successive strips of an index
type meanAccumulator struct {
	sum    float64
	n      int
	pixels int
}

func (a *meanAccumulator) Add(index raster.Band) {
	for _, v := range index.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		a.sum += v
		a.n++
	}
	a.pixels += len(index.Data)
}

func (a *meanAccumulator) Mean() (float64, error) {
	if a.n == 0 {
		return 0, service.ErrEmptyResult{Pixels: a.pixels}
	}
	return a.sum / float64(a.n), nil
}
