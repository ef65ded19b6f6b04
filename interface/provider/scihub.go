package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/airbusgeo/geocube-ndvi/common"
)

const ScihubDownloadURL = "https://scihub.copernicus.eu/dhus/odata/v1/Products('%s')/$value"

// ScihubImageProvider implements ImageProvider for Scihub (DHuS)
type ScihubImageProvider struct {
	user        string
	pword       string
	downloadURL string
}

// NewScihubImageProvider creates a new ImageProvider from Scihub
// downloadURL (containing %s for the product uuid) is optional
func NewScihubImageProvider(user, pword, downloadURL string) *ScihubImageProvider {
	if downloadURL == "" {
		downloadURL = ScihubDownloadURL
	}
	return &ScihubImageProvider{user: user, pword: pword, downloadURL: downloadURL}
}

// Name implements ImageProvider
func (ip *ScihubImageProvider) Name() string {
	return "Scihub"
}

// Download implements ImageProvider
func (ip *ScihubImageProvider) Download(ctx context.Context, scene common.Scene, localDir string) error {
	sceneName := scene.SourceID
	switch common.GetConstellationFromProductId(sceneName) {
	case common.Sentinel2:
	default:
		return fmt.Errorf("ScihubImageProvider: constellation not supported")
	}

	url := fmt.Sprintf(ip.downloadURL, scene.Data.UUID)
	setAuth := func(req *http.Request) { req.SetBasicAuth(ip.user, ip.pword) }
	if err := downloadZipWithAuth(ctx, url, localDir, sceneName, ip.Name(), setAuth, false); err != nil {
		return fmt.Errorf("ScihubImageProvider.%w", err)
	}
	return nil
}
