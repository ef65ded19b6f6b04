package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-ndvi/catalog"
	"github.com/airbusgeo/geocube-ndvi/catalog/entities"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/output"
	"github.com/airbusgeo/geocube-ndvi/pipeline"
	"github.com/airbusgeo/geocube-ndvi/processor"
	"github.com/airbusgeo/geocube-ndvi/raster/gdal"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/araddon/dateparse"
	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type config struct {
	EnvFile    string
	WorkingDir string
	Debug      bool
	Serve      string
	Progress   bool

	// Area
	AreaFile      string
	GeoJSONFile   string
	Lon, Lat      float64
	Radius        float64
	Start, End    string
	Constellation string
	Level         string
	CloudCover    string
	Orbit         string

	// Processing
	RedPattern string
	NIRPattern string
	NoData     bool

	// Outputs
	Output      string
	Plot        string
	StorageURI  string
	SummaryFile string

	catalog.Config
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.EnvFile, "env-file", ".env", "file of environment variables, loaded if it exists (credentials: COPERNICUS_USERNAME, COPERNICUS_PASSWORD, SCIHUB_USERNAME, SCIHUB_PASSWORD)")
	flag.StringVar(&config.WorkingDir, "workdir", os.TempDir(), "working directory where the scenes are downloaded (one at a time)")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")
	flag.StringVar(&config.Serve, "serve", "", "address to serve the time series (GET /ndvi) instead of running once (e.g. :8080)")
	flag.BoolVar(&config.Progress, "progress", true, "display the progress of the scenes")

	// Area
	flag.StringVar(&config.AreaFile, "area", "", "Json of the area to process (region, time_range, constellation, filters). Overrides the other area flags.")
	flag.StringVar(&config.GeoJSONFile, "aoi", "", "GeoJSON file of the region of interest (optional, instead of lon/lat/radius)")
	flag.Float64Var(&config.Lon, "lon", 88.39, "longitude of the center of the region of interest")
	flag.Float64Var(&config.Lat, "lat", 22.90, "latitude of the center of the region of interest")
	flag.Float64Var(&config.Radius, "radius", 0.1, "radius of the region of interest (degrees)")
	flag.StringVar(&config.Start, "start", "2024-01-01", "first acquisition date")
	flag.StringVar(&config.End, "end", "2024-03-01", "last acquisition date (inclusive)")
	flag.StringVar(&config.Constellation, "constellation", "sentinel2", "constellation")
	flag.StringVar(&config.Level, "level", entities.DefaultProcessingLevel, "processing level (Level-1C, Level-2A)")
	flag.StringVar(&config.CloudCover, "cloud-cover", "[0 TO 20]", "cloud cover percentage interval")
	flag.StringVar(&config.Orbit, "relative-orbit", "", "relative orbit number (optional)")

	// Processing
	flag.StringVar(&config.RedPattern, "red-pattern", processor.DefaultRedPattern, "suffix of the red band file")
	flag.StringVar(&config.NIRPattern, "nir-pattern", processor.DefaultNIRPattern, "suffix of the near-infrared band file")
	flag.BoolVar(&config.NoData, "nodata", true, "ignore the nodata pixels declared by the band files")

	// Outputs
	flag.StringVar(&config.Output, "output", "hooghly_ndvi_sentinel.csv", "csv file of the time series")
	flag.StringVar(&config.Plot, "plot", "", "png file of the time series (optional)")
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri (currently supported: local, gs) where the csv is uploaded (optional)")
	flag.StringVar(&config.SummaryFile, "summary", "", "json file of the summary of the run (optional)")

	// Catalog
	catalogs := flag.String("catalogs", "", "catalogs to search, comma-separated, in order of preference (copernicus, scihub). Default: copernicus (and scihub if configured)")
	providers := flag.String("providers", "", "image providers, comma-separated, in order of preference (local, gs, copernicus, scihub). Default: all the configured providers")
	flag.StringVar(&config.CopernicusUser, "copernicus-username", "", "copernicus dataspace username (default: $COPERNICUS_USERNAME)")
	flag.StringVar(&config.CopernicusPassword, "copernicus-password", "", "copernicus dataspace password (default: $COPERNICUS_PASSWORD)")
	flag.StringVar(&config.CopernicusQueryURL, "copernicus-query-url", "", "copernicus dataspace OData catalogue (optional)")
	flag.StringVar(&config.CopernicusDownloadURL, "copernicus-download-url", "", "copernicus dataspace download url, with %s for the product uuid (optional)")
	flag.StringVar(&config.CopernicusTokenURL, "copernicus-token-url", "", "copernicus dataspace token url (optional)")
	flag.IntVar(&config.CopernicusPageLimit, "copernicus-page-limit", 0, "number of products per page (optional)")
	flag.StringVar(&config.ScihubUser, "scihub-username", "", "scihub account username (default: $SCIHUB_USERNAME)")
	flag.StringVar(&config.ScihubPassword, "scihub-password", "", "scihub account password (default: $SCIHUB_PASSWORD)")
	flag.StringVar(&config.ScihubQueryURL, "scihub-query-url", "", "scihub search url (optional)")
	flag.StringVar(&config.ScihubDownloadURL, "scihub-download-url", "", "scihub download url, with %s for the product uuid (optional)")
	flag.StringVar(&config.LocalArchive, "local-path", "", "path or uri of an archive of products (YYYY/MM/DD/<scene>.zip) (optional). To configure a local path as a potential image Provider.")
	gsBuckets := flag.String("gs-provider-buckets", "", `Google Storage buckets, comma-separated (optional). To configure GS as a potential image Provider.
	bucket can contain several {IDENTIFIER} than will be replaced according to the sceneName (e.g. `+"gs://gcp-public-data-sentinel-2/L2/tiles/{LATITUDE_BAND}/{GRID_SQUARE}/{GRANULE_ID}/{SCENE}.SAFE"+`)`)
	flag.Parse()

	if config.EnvFile != "" {
		if err := godotenv.Load(config.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("env-file %s: %w", config.EnvFile, err)
		}
	}
	for _, v := range []struct {
		value *string
		env   string
	}{
		{&config.CopernicusUser, "COPERNICUS_USERNAME"},
		{&config.CopernicusPassword, "COPERNICUS_PASSWORD"},
		{&config.ScihubUser, "SCIHUB_USERNAME"},
		{&config.ScihubPassword, "SCIHUB_PASSWORD"},
	} {
		if *v.value == "" {
			*v.value = os.Getenv(v.env)
		}
	}

	if *catalogs != "" {
		config.Catalogs = strings.Split(*catalogs, ",")
	}
	if *providers != "" {
		config.ImageProviders = strings.Split(*providers, ",")
	}
	if *gsBuckets != "" {
		config.GSBuckets = strings.Split(*gsBuckets, ",")
	}
	if config.WorkingDir == "" {
		return nil, fmt.Errorf("missing workdir config flag")
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}
	if config.Debug {
		if err := log.Debug(); err != nil {
			return err
		}
	}

	area, err := config.area()
	if err != nil {
		return err
	}

	client, err := catalog.NewClient(ctx, config.Config)
	if err != nil {
		return err
	}
	var readerOpts []gdal.Option
	if config.NoData {
		readerOpts = append(readerOpts, gdal.WithNoData())
	}
	proc := processor.New(gdal.NewReader(readerOpts...))
	proc.RedPattern, proc.NIRPattern = config.RedPattern, config.NIRPattern

	if config.Serve != "" {
		p := pipeline.New(client, proc, nil, pipeline.WithWorkdir(config.WorkingDir))
		log.Logger(ctx).Sugar().Infof("serving on %s", config.Serve)
		return http.ListenAndServe(config.Serve, handlers.CombinedLoggingHandler(os.Stdout, p.NewHandler(area)))
	}

	opts := []pipeline.Option{pipeline.WithWorkdir(config.WorkingDir)}
	if config.Progress {
		bar := progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("scenes"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
		)
		defer bar.Finish()
		opts = append(opts, pipeline.WithObserver(func(scene common.Scene, status common.Status) {
			bar.Describe(fmt.Sprintf("%s [%s]%s[reset]", scene.Data.Date.Format(common.DateFormat), status.Color(), status))
			if status.Terminal() {
				bar.Add(1)
			}
		}))
	}

	p := pipeline.New(client, proc, config.sink(), opts...)
	records, summary, err := p.Run(ctx, area)
	if err != nil {
		return err
	}

	stats := output.Describe(records)
	fmt.Printf("\n%s\n", stats)
	if summary.Failed+summary.Skipped > 0 {
		fmt.Printf("%d processed, %d skipped, %d failed\n", summary.Processed, summary.Skipped, summary.Failed)
	}

	if config.SummaryFile != "" {
		s := struct {
			Summary common.Summary  `json:"summary"`
			Records []common.Record `json:"records"`
			Stats   *output.Stats   `json:"stats,omitempty"`
		}{Summary: summary, Records: records}
		if stats.Count > 1 {
			s.Stats = &stats
		}
		if err := service.ToJSON(s, config.SummaryFile); err != nil {
			return err
		}
	}
	return nil
}

// area returns the area to process, from the area file or from the flags
func (c *config) area() (entities.Area, error) {
	if c.AreaFile != "" {
		b, err := os.ReadFile(c.AreaFile)
		if err != nil {
			return entities.Area{}, fmt.Errorf("area: %w", err)
		}
		var area entities.Area
		if err := json.Unmarshal(b, &area); err != nil {
			return entities.Area{}, fmt.Errorf("area: %w", err)
		}
		return area, area.Validate()
	}

	area := entities.Area{
		Constellation: c.Constellation,
		Filters: entities.Filters{
			entities.FilterProcessingLevel: c.Level,
			entities.FilterCloudCover:      c.CloudCover,
		},
	}
	if c.Orbit != "" {
		area.Filters[entities.FilterRelativeOrbit] = c.Orbit
	}

	var err error
	if c.GeoJSONFile != "" {
		b, err := os.ReadFile(c.GeoJSONFile)
		if err != nil {
			return area, fmt.Errorf("aoi: %w", err)
		}
		if area.Region, err = entities.GeoJSONRegion(b); err != nil {
			return area, fmt.Errorf("aoi: %w", err)
		}
	} else if area.Region, err = entities.PointRegion(c.Lon, c.Lat, c.Radius); err != nil {
		return area, err
	}

	for _, d := range []struct {
		value string
		t     *time.Time
	}{{c.Start, &area.TimeRange.Start}, {c.End, &area.TimeRange.End}} {
		if *d.t, err = dateparse.ParseIn(d.value, time.UTC); err != nil {
			return area, fmt.Errorf("date %s: %w", d.value, err)
		}
	}
	return area, area.Validate()
}

// sink returns the outputs configured by the flags
func (c *config) sink() output.Sink {
	sinks := output.MultiSink{output.CSVSink{Path: c.Output}}
	if c.Plot != "" {
		sinks = append(sinks, output.PlotSink{Path: c.Plot})
	}
	if c.StorageURI != "" {
		sinks = append(sinks, output.StorageSink{URI: c.StorageURI, Name: filepath.Base(c.Output)})
	}
	return sinks
}
