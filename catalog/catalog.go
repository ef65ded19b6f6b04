package catalog

import (
	"context"
	"fmt"

	"github.com/airbusgeo/geocube-ndvi/interface/catalog"
	"github.com/airbusgeo/geocube-ndvi/interface/catalog/copernicus"
	"github.com/airbusgeo/geocube-ndvi/interface/catalog/scihub"
	"github.com/airbusgeo/geocube-ndvi/interface/provider"
)

// Names of the catalogs and the image providers
const (
	Copernicus = "copernicus"
	Scihub     = "scihub"
	Local      = "local"
	GS         = "gs"
)

// Config of the catalog client. Credentials are only held here.
type Config struct {
	// Catalogs to search, in order of preference (copernicus, scihub)
	// Default: copernicus, then scihub if ScihubUser is defined
	Catalogs []string
	// ImageProviders to download the products, in order of preference (local, gs, copernicus, scihub)
	// Default: every provider that is configured, in this order
	ImageProviders []string

	CopernicusUser        string
	CopernicusPassword    string
	CopernicusQueryURL    string
	CopernicusDownloadURL string
	CopernicusTokenURL    string
	CopernicusPageLimit   int

	ScihubUser        string
	ScihubPassword    string
	ScihubQueryURL    string
	ScihubDownloadURL string

	// LocalArchive is the uri of an archive of zipped products (YYYY/MM/DD/<scene>.zip)
	LocalArchive string
	// GSBuckets are templates of Sentinel-2 product urls (see provider.GSSentinel2L2ABucket)
	GSBuckets []string
}

// Client searches the catalogs and downloads the products
type Client struct {
	ScenesProviders []catalog.ScenesProvider
	ImageProviders  []provider.ImageProvider
}

// NewClient creates the scenes providers and the image providers described by the config
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{}

	catalogs := cfg.Catalogs
	if len(catalogs) == 0 {
		catalogs = []string{Copernicus}
		if cfg.ScihubUser != "" {
			catalogs = append(catalogs, Scihub)
		}
	}
	for _, name := range catalogs {
		switch name {
		case Copernicus:
			c.ScenesProviders = append(c.ScenesProviders, copernicus.NewProvider(cfg.CopernicusQueryURL, cfg.CopernicusPageLimit))
		case Scihub:
			c.ScenesProviders = append(c.ScenesProviders, scihub.NewProvider(cfg.ScihubUser, cfg.ScihubPassword, cfg.ScihubQueryURL))
		default:
			return nil, fmt.Errorf("NewClient: unknown catalog: %s", name)
		}
	}

	providers := cfg.ImageProviders
	if len(providers) == 0 {
		if cfg.LocalArchive != "" {
			providers = append(providers, Local)
		}
		if len(cfg.GSBuckets) > 0 {
			providers = append(providers, GS)
		}
		if cfg.CopernicusUser != "" {
			providers = append(providers, Copernicus)
		}
		if cfg.ScihubUser != "" {
			providers = append(providers, Scihub)
		}
	}
	for _, name := range providers {
		switch name {
		case Local:
			ip, err := provider.NewLocalImageProvider(ctx, cfg.LocalArchive)
			if err != nil {
				return nil, fmt.Errorf("NewClient.%w", err)
			}
			c.ImageProviders = append(c.ImageProviders, ip)
		case GS:
			ip := provider.NewGSImageProvider()
			buckets := cfg.GSBuckets
			if len(buckets) == 0 {
				buckets = []string{provider.GSSentinel2L2ABucket}
			}
			for _, bucket := range buckets {
				if err := ip.AddBucket("sentinel-2", bucket); err != nil {
					return nil, fmt.Errorf("NewClient.%w", err)
				}
			}
			c.ImageProviders = append(c.ImageProviders, ip)
		case Copernicus:
			if cfg.CopernicusUser == "" {
				return nil, fmt.Errorf("NewClient: copernicus image provider needs credentials")
			}
			c.ImageProviders = append(c.ImageProviders, provider.NewCopernicusImageProvider(cfg.CopernicusUser, cfg.CopernicusPassword, cfg.CopernicusDownloadURL, cfg.CopernicusTokenURL))
		case Scihub:
			if cfg.ScihubUser == "" {
				return nil, fmt.Errorf("NewClient: scihub image provider needs credentials")
			}
			c.ImageProviders = append(c.ImageProviders, provider.NewScihubImageProvider(cfg.ScihubUser, cfg.ScihubPassword, cfg.ScihubDownloadURL))
		default:
			return nil, fmt.Errorf("NewClient: unknown image provider: %s", name)
		}
	}
	if len(c.ImageProviders) == 0 {
		return nil, fmt.Errorf("NewClient: no image provider is configured")
	}

	return c, nil
}
