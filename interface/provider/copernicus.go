package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/airbusgeo/geocube-ndvi/common"
	"golang.org/x/oauth2"
)

const (
	CopernicusDownloadURL = "https://zipper.dataspace.copernicus.eu/odata/v1/Products(%s)/$value"
	CopernicusTokenURL    = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	copernicusClientID    = "cdse-public"
)

// CopernicusImageProvider implements ImageProvider for the Copernicus Data Space Ecosystem
type CopernicusImageProvider struct {
	user        string
	pword       string
	downloadURL string
	config      oauth2.Config

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
}

// Name implements ImageProvider
func (ip *CopernicusImageProvider) Name() string {
	return "Copernicus"
}

// NewCopernicusImageProvider creates a new ImageProvider from Copernicus
// downloadURL (containing %s for the product uuid) and tokenURL are optional
func NewCopernicusImageProvider(user, pword, downloadURL, tokenURL string) *CopernicusImageProvider {
	if downloadURL == "" {
		downloadURL = CopernicusDownloadURL
	}
	if tokenURL == "" {
		tokenURL = CopernicusTokenURL
	}
	return &CopernicusImageProvider{
		user:        user,
		pword:       pword,
		downloadURL: downloadURL,
		config: oauth2.Config{
			ClientID: copernicusClientID,
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
	}
}

// token returns a valid access token, asking for a new one with the user credentials if needed
func (ip *CopernicusImageProvider) token(ctx context.Context) (string, error) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.tokenSource == nil {
		tok, err := ip.config.PasswordCredentialsToken(ctx, ip.user, ip.pword)
		if err != nil {
			return "", fmt.Errorf("CopernicusToken.PasswordCredentialsToken: %w", err)
		}
		ip.tokenSource = oauth2.ReuseTokenSource(tok, ip.config.TokenSource(context.Background(), tok))
	}
	tok, err := ip.tokenSource.Token()
	if err != nil {
		// The refresh token may have expired: ask for a new one next time
		ip.tokenSource = nil
		return "", fmt.Errorf("CopernicusToken.Token: %w", err)
	}
	return tok.AccessToken, nil
}

// Download implements ImageProvider
func (ip *CopernicusImageProvider) Download(ctx context.Context, scene common.Scene, localDir string) error {
	sceneName := scene.SourceID
	switch common.GetConstellationFromProductId(sceneName) {
	case common.Sentinel2:
	default:
		return fmt.Errorf("CopernicusImageProvider: constellation not supported")
	}
	if scene.Data.UUID == "" {
		return fmt.Errorf("CopernicusImageProvider: uuid of %s is unknown", sceneName)
	}

	token, err := ip.token(ctx)
	if err != nil {
		return fmt.Errorf("CopernicusImageProvider.Download.%w", err)
	}

	url := fmt.Sprintf(ip.downloadURL, scene.Data.UUID)
	setAuth := func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
	if err := downloadZipWithAuth(ctx, url, localDir, sceneName, ip.Name(), setAuth, true); err != nil {
		return fmt.Errorf("CopernicusImageProvider.%w", err)
	}
	return nil
}
