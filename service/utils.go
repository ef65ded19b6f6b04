package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
)

// StringSet is a set of strings (all elements are unique)
type StringSet map[string]struct{}

// Push adds the string to the set if not already exists
func (ss StringSet) Push(s string) {
	ss[s] = struct{}{}
}

// Pop removes the string from the set
func (ss StringSet) Pop(s string) {
	delete(ss, s)
}

// Slice returns a slice from the set
func (ss StringSet) Slice() []string {
	sl := make([]string, 0, len(ss))
	for k := range ss {
		sl = append(sl, k)
	}
	return sl
}

// Exists returns true if the string already exists in the Set
func (ss StringSet) Exists(s string) bool {
	_, ok := ss[s]
	return ok
}

// GetBody: simple GET returning the body of the response.
// Network errors and 5xx statuses are marked as temporary
func GetBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	return GetBodyReq(req)
}

// GetBodyReq: same as GetBody with a custom request
func GetBodyReq(req *http.Request) ([]byte, error) {
	var e *neturl.Error
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		if errors.As(err, &e) && e.Timeout() {
			return nil, MakeTemporary(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("ReadAll: %w", err))
	}
	if resp.StatusCode != 200 {
		err = fmt.Errorf("%s: %s", resp.Status, body)
		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			return nil, MakeTemporary(err)
		}
		return nil, err
	}
	return body, nil
}
