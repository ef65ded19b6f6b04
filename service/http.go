package service

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPGetWithAuth GETs url with basic auth (if authName is set) or bearer token (if authToken is set)
func HTTPGetWithAuth(ctx context.Context, url, authName, authPswd, authToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPGet: %w", err)
	}
	setAuth(req, authName, authPswd, authToken)
	body, err := GetBodyReq(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPGet: %w", err)
	}
	return body, nil
}

func setAuth(req *http.Request, authName, authPswd, authToken string) {
	if authName != "" {
		req.SetBasicAuth(authName, authPswd)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
}
