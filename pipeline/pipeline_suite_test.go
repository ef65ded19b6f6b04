package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// MokeCatalog implements CatalogClient
// Fetch creates <workdir>/<SourceID>, or fails if the scene is in fetchErrors
type MokeCatalog struct {
	scenes      []common.Scene
	queryError  error
	fetchErrors map[string]error
	fetched     []string

	running    int32
	maxRunning int32
}

// Query implements CatalogClient
func (c *MokeCatalog) Query(ctx context.Context, area entities.Area) ([]common.Scene, error) {
	running := atomic.AddInt32(&c.running, 1)
	defer atomic.AddInt32(&c.running, -1)
	for {
		max := atomic.LoadInt32(&c.maxRunning)
		if running <= max || atomic.CompareAndSwapInt32(&c.maxRunning, max, running) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if c.queryError != nil {
		return nil, service.ErrQuery{Err: c.queryError}
	}
	return c.scenes, nil
}

// Fetch implements CatalogClient
func (c *MokeCatalog) Fetch(ctx context.Context, scene common.Scene, workdir string) (string, error) {
	if err, ok := c.fetchErrors[scene.SourceID]; ok {
		return "", service.ErrFetch{Scene: scene.SourceID, Err: err}
	}
	root := filepath.Join(workdir, scene.SourceID)
	if err := os.MkdirAll(filepath.Join(root, "GRANULE"), 0766); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(root, "GRANULE", "B04_10m.jp2"), []byte("jp2"), 0644); err != nil {
		return "", err
	}
	c.fetched = append(c.fetched, root)
	return root, nil
}

// MokeProcessor implements SceneProcessor
// The result of a scene is found with the base name of its root
type MokeProcessor struct {
	ndvi   map[string]float64
	errors map[string]error
}

// Summarize implements SceneProcessor
func (p *MokeProcessor) Summarize(ctx context.Context, sceneRoot string) (float64, error) {
	id := filepath.Base(sceneRoot)
	if _, err := os.Stat(sceneRoot); err != nil {
		return 0, fmt.Errorf("scene root not found: %w", err)
	}
	if err, ok := p.errors[id]; ok {
		return 0, err
	}
	return p.ndvi[id], nil
}

// MokeSink implements output.Sink
type MokeSink struct {
	calls   int
	records []common.Record
}

// Write implements output.Sink
func (s *MokeSink) Write(ctx context.Context, records []common.Record) error {
	s.calls++
	s.records = records
	return nil
}

var ctx context.Context
var tempDirs []string

func testScene(i int) common.Scene {
	date := time.Date(2024, 1, 5*i, 4, 52, 1, 0, time.UTC)
	return common.Scene{
		SourceID: fmt.Sprintf("S2A_MSIL2A_%s_N0510_R076_T45QXF_%s", date.Format("20060102T150405"), date.Format("20060102T150405")),
		Data: common.SceneAttrs{
			UUID:       fmt.Sprintf("uuid-%d", i),
			Date:       date,
			CloudCover: float64(i),
		},
	}
}

func testArea() entities.Area {
	region, err := entities.PointRegion(88.39, 22.90, 0.1)
	Expect(err).NotTo(HaveOccurred())
	return entities.Area{
		Region:        region,
		TimeRange:     entities.TimeRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		Constellation: "sentinel2",
		Filters: entities.Filters{
			entities.FilterProcessingLevel: entities.DefaultProcessingLevel,
			entities.FilterCloudCover:      "[0 TO 20]",
		},
	}
}

var _ = BeforeSuite(func() {
	ctx = context.Background()
})

var _ = AfterSuite(func() {
	for _, dir := range tempDirs {
		os.RemoveAll(dir)
	}
})

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}
