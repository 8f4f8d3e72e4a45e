package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"abundance/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS permits (
  permitId TEXT PRIMARY KEY,
  logNum TEXT,
  address TEXT,
  neighborhood TEXT,
  units INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  stageCode TEXT,
  dateReceived TEXT,
  dateIssued TEXT,
  finalDate TEXT,
  valuation REAL NOT NULL DEFAULT 0,
  contractor TEXT,
  longitude REAL,
  latitude REAL,
  sourceUrl TEXT,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_permits_logNum ON permits(logNum);
CREATE INDEX IF NOT EXISTS idx_permits_address ON permits(address);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  version TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplacePermits swaps in the full row set from a feed sync. The cache
// mirrors the latest snapshot; rows that left the feed leave the cache.
func (d *DB) ReplacePermits(rows []internal.PermitRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM permits`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO permits (
  permitId, logNum, address, neighborhood, units, status, stageCode,
  dateReceived, dateIssued, finalDate, valuation, contractor,
  longitude, latitude, sourceUrl, lastSeenAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(permitId) DO UPDATE SET
  logNum=excluded.logNum,
  address=excluded.address,
  neighborhood=excluded.neighborhood,
  units=excluded.units,
  status=excluded.status,
  stageCode=excluded.stageCode,
  dateReceived=excluded.dateReceived,
  dateIssued=excluded.dateIssued,
  finalDate=excluded.finalDate,
  valuation=excluded.valuation,
  contractor=excluded.contractor,
  longitude=excluded.longitude,
  latitude=excluded.latitude,
  sourceUrl=excluded.sourceUrl,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(
			r.PermitID, r.LogNum, r.Address, r.Neighborhood, r.Units, string(r.Status), r.StageCode,
			r.DateReceived, r.DateIssued, r.FinalDate, r.Valuation, r.Contractor,
			r.Longitude, r.Latitude, r.SourceURL,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPermits returns cached rows ordered by permit id so downstream
// grouping sees a stable sequence regardless of insert order.
func (d *DB) ListPermits() ([]internal.PermitRow, error) {
	rows, err := d.conn.Query(`
SELECT permitId, logNum, address, neighborhood, units, status, stageCode,
       dateReceived, dateIssued, finalDate, valuation, contractor,
       longitude, latitude, sourceUrl
FROM permits
ORDER BY permitId`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PermitRow
	for rows.Next() {
		var r internal.PermitRow
		var status string
		var lon, lat sql.NullFloat64
		if err := rows.Scan(
			&r.PermitID, &r.LogNum, &r.Address, &r.Neighborhood, &r.Units, &status, &r.StageCode,
			&r.DateReceived, &r.DateIssued, &r.FinalDate, &r.Valuation, &r.Contractor,
			&lon, &lat, &r.SourceURL,
		); err != nil {
			return nil, err
		}
		r.Status = internal.ProjectStatus(status)
		if lon.Valid {
			v := lon.Float64
			r.Longitude = &v
		}
		if lat.Valid {
			v := lat.Float64
			r.Latitude = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) CountPermits() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM permits`).Scan(&n)
	return n, err
}

func (d *DB) InsertRun(traceID, version string, stats internal.RunStats) error {
	counts, _ := json.Marshal(map[string]int{
		"fetched":         stats.Fetched,
		"normalized":      stats.Normalized,
		"skipped":         stats.SkippedRows,
		"unmappedStatus":  stats.UnmappedStatus,
		"zeroUnitDropped": stats.ZeroUnitDropped,
		"projects":        stats.Projects,
		"supplementalIn":  stats.SupplementalIn,
	})
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, version, countsJson) VALUES (?, ?, ?)`,
		traceID, version, string(counts))
	return err
}

// LastRunCounts returns the counters of the most recent run row for a
// version, or nil when none was recorded.
func (d *DB) LastRunCounts(version string) (map[string]int, error) {
	var countsJSON string
	err := d.conn.QueryRow(`SELECT countsJson FROM runs WHERE version = ? ORDER BY id DESC LIMIT 1`, version).Scan(&countsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	if err := json.Unmarshal([]byte(countsJSON), &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value, updatedAt) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updatedAt=CURRENT_TIMESTAMP`,
		key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
