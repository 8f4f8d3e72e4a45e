package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"abundance/internal"
	"abundance/internal/config"
	"abundance/internal/pipeline"
	"abundance/internal/storage"
)

// SyncService pulls the permit feed, snapshots the raw payload and caches
// the normalized rows so builds can run offline.
type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

type SyncResult struct {
	Fetched    int
	Normalized int
	Skipped    int
	Unmapped   int
	FetchedAt  string
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

func (s *SyncService) Sync(ctx context.Context) (SyncResult, error) {
	features, err := s.client.FetchAll(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if len(features) == 0 {
		return SyncResult{}, fmt.Errorf("feed returned no features")
	}

	fetchedAt := time.Now().UTC().Format(time.RFC3339)
	if err := s.writeRawSnapshot(features, fetchedAt); err != nil {
		return SyncResult{}, err
	}

	normalizer := pipeline.NewNormalizer(s.cfg, s.client.SourceURL())
	rows := make([]internal.PermitRow, 0, len(features))
	for _, feat := range features {
		row, ok := normalizer.Normalize(feat)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	if err := s.db.ReplacePermits(rows); err != nil {
		return SyncResult{}, err
	}

	stats := internal.RunStats{
		Fetched:        len(features),
		Normalized:     len(rows),
		SkippedRows:    normalizer.Stats.SkippedRows,
		UnmappedStatus: normalizer.Stats.UnmappedStatus,
	}
	_ = s.db.InsertRun(uuid.NewString(), "sync", stats)

	syncStats, _ := json.Marshal(internal.SyncStats{
		Fetched:  stats.Fetched,
		Skipped:  stats.SkippedRows,
		Unmapped: stats.UnmappedStatus,
	})
	_ = s.db.SetMetadata("feed.last_sync", fetchedAt)
	_ = s.db.SetMetadata("feed.last_sync_count", fmt.Sprintf("%d", len(rows)))
	_ = s.db.SetMetadata("feed.last_sync_stats", string(syncStats))

	return SyncResult{
		Fetched:    len(features),
		Normalized: len(rows),
		Skipped:    normalizer.Stats.SkippedRows,
		Unmapped:   normalizer.Stats.UnmappedStatus,
		FetchedAt:  fetchedAt,
	}, nil
}

func (s *SyncService) writeRawSnapshot(features []internal.RawFeature, fetchedAt string) error {
	snapshot := map[string]any{
		"fetched_at": fetchedAt,
		"count":      len(features),
		"features":   features,
	}
	blob, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.cfg.RawDir, "denver_residential_construction_permits.raw.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}
