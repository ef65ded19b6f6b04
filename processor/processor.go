package processor

import (
	"context"
	"fmt"

	"github.com/airbusgeo/geocube-ndvi/raster"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
)

const (
	DefaultRedPattern = "B04_10m.jp2"
	DefaultNIRPattern = "B08_10m.jp2"
	// 512 rows of a 10m band (10980 pixels) is about 45Mo per float64 strip
	DefaultStripRows = 512
)

// Processor computes the NDVI of a scene stored in a local directory
type Processor struct {
	Reader     raster.Reader
	RedPattern string
	NIRPattern string
	// StripRows is the number of rows read at once by Summarize (whole band if <= 0)
	StripRows int
}

// New returns a Processor looking for the Sentinel-2 L2A 10m red and near-infrared bands
func New(reader raster.Reader) *Processor {
	return &Processor{
		Reader:     reader,
		RedPattern: DefaultRedPattern,
		NIRPattern: DefaultNIRPattern,
		StripRows:  DefaultStripRows,
	}
}

// Process locates the red and nir bands under sceneRoot and returns the NDVI array.
// Returns service.ErrMissingBand if one of the bands is not found.
func (p *Processor) Process(ctx context.Context, sceneRoot string) (raster.Band, error) {
	redFile, nirFile, err := p.locateBands(ctx, sceneRoot)
	if err != nil {
		return raster.Band{}, fmt.Errorf("Process.%w", err)
	}
	red, err := p.read(redFile)
	if err != nil {
		return raster.Band{}, fmt.Errorf("Process.%w", err)
	}
	nir, err := p.read(nirFile)
	if err != nil {
		return raster.Band{}, fmt.Errorf("Process.%w", err)
	}

	index, err := NDVI(red, nir)
	if err != nil {
		return raster.Band{}, fmt.Errorf("Process.%w", err)
	}
	return index, nil
}

// Summarize returns the mean NDVI of the scene stored in sceneRoot.
// The bands are read by strips of StripRows rows, so the whole index array is never allocated.
func (p *Processor) Summarize(ctx context.Context, sceneRoot string) (float64, error) {
	redFile, nirFile, err := p.locateBands(ctx, sceneRoot)
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	red, err := p.Reader.Open(redFile)
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	defer red.Close()
	nir, err := p.Reader.Open(nirFile)
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	defer nir.Close()

	width, height, err := red.Size(1)
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	nirWidth, nirHeight, err := nir.Size(1)
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	if width != nirWidth || height != nirHeight {
		return 0, fmt.Errorf("Summarize: shape mismatch: red is %dx%d, nir is %dx%d", width, height, nirWidth, nirHeight)
	}

	strip := p.StripRows
	if strip <= 0 {
		strip = height
	}
	var acc meanAccumulator
	for row := 0; row < height; row += strip {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("Summarize.%w", err)
		}
		count := min(strip, height-row)
		r, err := red.ReadRows(1, row, count)
		if err != nil {
			return 0, fmt.Errorf("Summarize.%w", err)
		}
		n, err := nir.ReadRows(1, row, count)
		if err != nil {
			return 0, fmt.Errorf("Summarize.%w", err)
		}
		index, err := NDVI(r, n)
		if err != nil {
			return 0, fmt.Errorf("Summarize.%w", err)
		}
		acc.Add(index)
	}
	mean, err := acc.Mean()
	if err != nil {
		return 0, fmt.Errorf("Summarize.%w", err)
	}
	return mean, nil
}

func (p *Processor) locateBands(ctx context.Context, sceneRoot string) (string, string, error) {
	redFile, err := p.locate(sceneRoot, p.RedPattern)
	if err != nil {
		return "", "", err
	}
	nirFile, err := p.locate(sceneRoot, p.NIRPattern)
	if err != nil {
		return "", "", err
	}
	log.Logger(ctx).Sugar().Debugf("red band: %s, nir band: %s", redFile, nirFile)
	return redFile, nirFile, nil
}

func (p *Processor) locate(sceneRoot, pattern string) (string, error) {
	file, ok, err := LocateBand(sceneRoot, pattern)
	if err != nil {
		return "", fmt.Errorf("locate.%w", err)
	}
	if !ok {
		return "", service.ErrMissingBand{Root: sceneRoot, Pattern: pattern}
	}
	return file, nil
}

func (p *Processor) read(file string) (raster.Band, error) {
	ds, err := p.Reader.Open(file)
	if err != nil {
		return raster.Band{}, fmt.Errorf("read.%w", err)
	}
	defer ds.Close()
	band, err := raster.ReadBand(ds, 1)
	if err != nil {
		return raster.Band{}, fmt.Errorf("read.%w", err)
	}
	return band, nil
}
