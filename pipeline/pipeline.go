package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/output"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
)

// CatalogClient lists the scenes of an area and retrieves them to local storage
type CatalogClient interface {
	Query(ctx context.Context, area entities.Area) ([]common.Scene, error)
	// Fetch returns the root directory of the scene, removed by the caller
	Fetch(ctx context.Context, scene common.Scene, workdir string) (string, error)
}

// SceneProcessor reduces a fetched scene to its mean NDVI
type SceneProcessor interface {
	Summarize(ctx context.Context, sceneRoot string) (float64, error)
}

// Observer is notified of each state of each scene
type Observer func(scene common.Scene, status common.Status)

// Pipeline builds the NDVI time series of an area, one scene after the other
type Pipeline struct {
	catalog   CatalogClient
	processor SceneProcessor
	sink      output.Sink
	workdir   string
	observer  Observer

	// serializes the runs of the http handler
	mu sync.Mutex
}

type Option func(*Pipeline)

// WithWorkdir sets the directory where the scenes are fetched (default: os.TempDir())
func WithWorkdir(dir string) Option {
	return func(p *Pipeline) {
		p.workdir = dir
	}
}

// WithObserver sets a function called on every state change of a scene
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// New creates a pipeline. sink can be nil.
func New(catalog CatalogClient, processor SceneProcessor, sink output.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:   catalog,
		processor: processor,
		sink:      sink,
		workdir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run queries the catalog, processes every scene in the catalog order and writes the records to the sink.
// A failing scene is recorded in the summary and does not stop the run.
// An error is returned if the query fails (service.ErrQuery), if ctx is done or if the sink fails.
func (p *Pipeline) Run(ctx context.Context, area entities.Area) ([]common.Record, common.Summary, error) {
	var summary common.Summary
	records := []common.Record{}

	scenes, err := p.catalog.Query(ctx, area)
	if err != nil {
		if !service.IsQuery(err) {
			err = service.ErrQuery{Err: err}
		}
		return nil, summary, fmt.Errorf("Run.%w", err)
	}
	summary.Matched = len(scenes)
	log.Logger(ctx).Sugar().Infof("%d scenes matched the query", len(scenes))

	for _, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return records, summary, fmt.Errorf("Run: %w", err)
		}
		sctx := log.With(ctx, "scene", scene.SourceID)
		record, status, err := p.processScene(sctx, scene)
		summary.Add(scene.SourceID, status, err)
		p.notify(scene, status)
		switch status {
		case common.StatusPROCESSED:
			records = append(records, record)
			log.Logger(sctx).Sugar().Debugf("%s: ndvi=%f", record.Date, record.NDVI)
		case common.StatusSKIPPED:
			log.Logger(sctx).Sugar().Infof("skipped: %v", err)
		default:
			log.Logger(sctx).Sugar().Warnf("failed: %v", err)
		}
	}

	switch {
	case summary.Matched == 0:
		log.Logger(ctx).Sugar().Warn("no scene matched the query")
	case len(records) == 0:
		log.Logger(ctx).Sugar().Warnf("%d scenes matched but none produced a record (%d skipped, %d failed)", summary.Matched, summary.Skipped, summary.Failed)
	default:
		log.Logger(ctx).Sugar().Infof("%d records (%d skipped, %d failed)", len(records), summary.Skipped, summary.Failed)
	}

	if p.sink != nil {
		if err := p.sink.Write(ctx, records); err != nil {
			return records, summary, fmt.Errorf("Run.%w", err)
		}
	}
	return records, summary, nil
}

// processScene runs the state machine of a scene: PENDING -> FETCHED -> PROCESSED | SKIPPED | FAILED
// The scene root is removed whatever the terminal state.
func (p *Pipeline) processScene(ctx context.Context, scene common.Scene) (common.Record, common.Status, error) {
	p.notify(scene, common.StatusPENDING)

	sceneRoot, err := p.catalog.Fetch(ctx, scene, p.workdir)
	if err != nil {
		return common.Record{}, common.StatusFAILED, err
	}
	defer p.cleanup(ctx, sceneRoot)
	p.notify(scene, common.StatusFETCHED)

	ndvi, err := p.processor.Summarize(ctx, sceneRoot)
	if err != nil {
		if service.IsMissingBand(err) {
			return common.Record{}, common.StatusSKIPPED, err
		}
		return common.Record{}, common.StatusFAILED, err
	}
	return common.NewRecord(scene, ndvi), common.StatusPROCESSED, nil
}

func (p *Pipeline) cleanup(ctx context.Context, sceneRoot string) {
	if sceneRoot == "" {
		return
	}
	if err := os.RemoveAll(sceneRoot); err != nil {
		log.Logger(ctx).Sugar().Warnf("cleanup %s: %v", sceneRoot, err)
	}
}

func (p *Pipeline) notify(scene common.Scene, status common.Status) {
	if p.observer != nil {
		p.observer(scene, status)
	}
}
