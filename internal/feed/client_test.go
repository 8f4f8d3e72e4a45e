package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"abundance/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.Config {
	cfg, _ := config.Load()
	cfg.FeedServiceURL = "https://example.test/arcgis/rest/services/PERMITS/FeatureServer/316/query"
	cfg.FeedPageSize = 2
	cfg.FeedRateLimitRPS = 1000
	return cfg
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func feature(objectID int) map[string]any {
	return map[string]any{
		"attributes": map[string]any{"OBJECTID": objectID, "PERMIT_NUM": "P", "ADDRESS": "1 A St"},
	}
}

func TestFetchAllPagesWithRetry(t *testing.T) {
	attempt := 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if !strings.HasSuffix(r.URL.Path, "/FeatureServer/316/query") {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			attempt++
			switch attempt {
			case 1:
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader(`overloaded`)),
					Header:     make(http.Header),
				}, nil
			case 2:
				if r.URL.Query().Get("resultOffset") != "0" {
					t.Fatalf("offset %s", r.URL.Query().Get("resultOffset"))
				}
				return jsonResponse(http.StatusOK, map[string]any{
					"features":              []any{feature(1), feature(2)},
					"exceededTransferLimit": true,
				}), nil
			default:
				if r.URL.Query().Get("resultOffset") != "2" {
					t.Fatalf("offset %s", r.URL.Query().Get("resultOffset"))
				}
				return jsonResponse(http.StatusOK, map[string]any{
					"features": []any{feature(3)},
				}), nil
			}
		}),
	}

	features, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 3 {
		t.Fatalf("features=%d", len(features))
	}
}

func TestFetchAllFollowsTransferLimitFlag(t *testing.T) {
	// The service may cap a page below the requested record count; the
	// exceededTransferLimit flag, not the page length, says whether more
	// rows remain.
	page := 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			page++
			switch page {
			case 1:
				if r.URL.Query().Get("resultOffset") != "0" {
					t.Fatalf("offset %s", r.URL.Query().Get("resultOffset"))
				}
				return jsonResponse(http.StatusOK, map[string]any{
					"features":              []any{feature(1)},
					"exceededTransferLimit": true,
				}), nil
			default:
				if r.URL.Query().Get("resultOffset") != "1" {
					t.Fatalf("offset %s", r.URL.Query().Get("resultOffset"))
				}
				return jsonResponse(http.StatusOK, map[string]any{
					"features": []any{feature(2)},
				}), nil
			}
		}),
	}

	features, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 2 {
		t.Fatalf("features=%d", len(features))
	}
	if page != 2 {
		t.Fatalf("pages=%d", page)
	}
}

func TestFetchAllServiceErrorBody(t *testing.T) {
	// ArcGIS reports some failures inside a 200 response.
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{
				"error": map[string]any{"code": 400, "message": "Invalid query"},
			}), nil
		}),
	}

	if _, err := client.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchAllGivesUpAfterRetries(t *testing.T) {
	calls := 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return &http.Response{
				StatusCode: http.StatusBadGateway,
				Body:       io.NopCloser(strings.NewReader(`bad gateway`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := client.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 5 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestSourceURLTrimsQueryPath(t *testing.T) {
	client := NewClient(testConfig())
	want := "https://example.test/arcgis/rest/services/PERMITS/FeatureServer"
	if got := client.SourceURL(); got != want {
		t.Fatalf("got %q", got)
	}
}
