package feed

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"abundance/internal/storage"
)

func TestSyncRecordsRunCounters(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.DBPath = filepath.Join(dir, "cache.db")
	cfg.RawDir = filepath.Join(dir, "raw")
	cfg.FeedPageSize = 10

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := NewSyncService(db, cfg)
	svc.client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{
				"features": []any{
					feature(1),
					feature(2),
					// No permit number or address: dropped during normalization.
					map[string]any{"attributes": map[string]any{"OBJECTID": 3, "UNITS": 5}},
				},
			}), nil
		}),
	}

	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Fetched != 3 || result.Normalized != 2 || result.Skipped != 1 {
		t.Fatalf("result=%+v", result)
	}

	counts, err := db.LastRunCounts("sync")
	if err != nil {
		t.Fatal(err)
	}
	if counts == nil {
		t.Fatal("no sync run recorded")
	}
	if counts["fetched"] != 3 || counts["skipped"] != 1 {
		t.Fatalf("counts=%v", counts)
	}

	blob, err := db.GetMetadata("feed.last_sync_stats")
	if err != nil {
		t.Fatal(err)
	}
	if blob == nil {
		t.Fatal("sync stats metadata missing")
	}

	snapshot := filepath.Join(cfg.RawDir, "denver_residential_construction_permits.raw.json")
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("raw snapshot: %v", err)
	}
}
