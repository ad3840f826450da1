package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/safestreets/safestreets/internal/metrics"
	"github.com/safestreets/safestreets/internal/models"
)

// Store caches raw upstream payloads in SQLite so repeat analyses of the
// same point skip the slow collaborators. Computed scores are never stored;
// they are recomputed from snapshots on every request.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// coordKey rounds a coordinate to 4 decimal places, about 11 metres, so
// nearby requests share a cache entry.
func coordKey(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// PutSnapshot stores a compressed payload for a source and location,
// replacing any previous snapshot for the same cache key.
func (s *Store) PutSnapshot(source string, lat, lon, radius float64, payload []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	_, err := s.db.Exec(`
		INSERT INTO snapshots (source, lat_key, lon_key, radius, payload_compressed, payload_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, lat_key, lon_key, radius) DO UPDATE SET
			payload_compressed = excluded.payload_compressed,
			payload_hash = excluded.payload_hash,
			fetched_at = excluded.fetched_at
	`, source, coordKey(lat), coordKey(lon), radius, buf.Bytes(), hex.EncodeToString(hash[:]), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached payload for a source and location if it is
// younger than maxAge. A miss returns (nil, nil).
func (s *Store) GetSnapshot(source string, lat, lon, radius float64, maxAge time.Duration) (*models.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, payload_compressed, fetched_at
		FROM snapshots
		WHERE source = ? AND lat_key = ? AND lon_key = ? AND radius = ?
	`, source, coordKey(lat), coordKey(lon), radius)

	var (
		id         int64
		compressed []byte
		fetchedAt  time.Time
	)
	err := row.Scan(&id, &compressed, &fetchedAt)
	if err == sql.ErrNoRows {
		metrics.SnapshotCacheLookups.WithLabelValues(source, "miss").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	if time.Since(fetchedAt) > maxAge {
		metrics.SnapshotCacheLookups.WithLabelValues(source, "stale").Inc()
		return nil, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()
	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	metrics.SnapshotCacheLookups.WithLabelValues(source, "hit").Inc()
	return &models.Snapshot{
		ID:        id,
		Source:    source,
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
		Payload:   string(payload),
		FetchedAt: fetchedAt,
	}, nil
}

// CleanupOldSnapshots deletes snapshots older than the retention window.
// Returns the number of deleted records.
func (s *Store) CleanupOldSnapshots(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM snapshots
		WHERE fetched_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SnapshotStats contains storage statistics for the snapshot cache.
type SnapshotStats struct {
	TotalCount      int
	TotalSizeBytes  int64
	OldestFetchedAt time.Time
	NewestFetchedAt time.Time
	CountBySource   map[string]int
}

func (s *Store) GetSnapshotStats() (*SnapshotStats, error) {
	stats := &SnapshotStats{CountBySource: make(map[string]int)}

	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0),
		       MIN(fetched_at), MAX(fetched_at)
		FROM snapshots
	`)
	var oldest, newest sql.NullTime
	if err := row.Scan(&stats.TotalCount, &stats.TotalSizeBytes, &oldest, &newest); err != nil {
		return nil, err
	}
	if oldest.Valid {
		stats.OldestFetchedAt = oldest.Time
	}
	if newest.Valid {
		stats.NewestFetchedAt = newest.Time
	}

	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM snapshots GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.CountBySource[source] = count
	}
	return stats, rows.Err()
}

// LogAnalysis records one analysis request for rate accounting.
func (s *Store) LogAnalysis(lat, lon, radius float64, duration time.Duration, status string) error {
	_, err := s.db.Exec(`
		INSERT INTO analysis_log (latitude, longitude, radius, duration_ms, status)
		VALUES (?, ?, ?, ?, ?)
	`, lat, lon, radius, duration.Milliseconds(), status)
	return err
}

// AnalysisCountSince returns how many analyses ran since the cutoff.
func (s *Store) AnalysisCountSince(cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM analysis_log WHERE requested_at >= ?
	`, cutoff).Scan(&count)
	return count, err
}
