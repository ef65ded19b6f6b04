package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
)

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Push("S2A")
	ss.Push("S2B")
	ss.Push("S2A")
	if len(ss) != 2 || !ss.Exists("S2A") {
		t.Errorf("unexpected set %v", ss)
	}
	ss.Pop("S2A")
	sl := ss.Slice()
	sort.Strings(sl)
	if strings.Join(sl, ",") != "S2B" {
		t.Errorf("expected [S2B], got %v", sl)
	}
}

func TestGetBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "hello")
		case "/busy":
			w.WriteHeader(503)
		default:
			w.WriteHeader(404)
		}
	}))
	defer server.Close()
	ctx := context.Background()

	if body, err := GetBody(ctx, server.URL+"/ok"); err != nil || string(body) != "hello" {
		t.Errorf("expected hello, got %s (%v)", body, err)
	}
	if _, err := GetBody(ctx, server.URL+"/busy"); err == nil || !Temporary(err) {
		t.Errorf("expected temporary error, got %v", err)
	}
	if _, err := GetBody(ctx, server.URL+"/missing"); err == nil || Temporary(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}
