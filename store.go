package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/suinrdeveloper-dev/vault/internal/store/migrations"
	_ "modernc.org/sqlite"
)

// Metadata keys maintained by the client.
const (
	MetaLastSync    = "last_sync"
	MetaLastCycleID = "last_cycle_id"
)

const recordColumns = `local_id, remote_id, source_label, header, payload, created_at, artifact_path, synced_at`

// Store is the durable local archive of synced records.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
	subs   *subscriptionHub
}

// NewStore opens or creates a local store at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps the pragmas below in force for every statement.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, path: path, subs: newSubscriptionHub()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("store: %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InsertOrReplace stores rec keyed by its RemoteID. An existing row with the
// same RemoteID is replaced and the replacement receives a new LocalID, so a
// re-delivered record sorts as the most recent. On success rec.LocalID and
// rec.SyncedAt reflect the stored row.
func (s *Store) InsertOrReplace(ctx context.Context, rec *SyncedRecord) error {
	if rec == nil || rec.RemoteID == "" {
		return errors.New("store: record requires a remote id")
	}
	if rec.ArtifactPath == "" {
		return errors.New("store: record requires an artifact path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	prior, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM synced_records WHERE remote_id = ?`, rec.RemoteID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("store: read prior row: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO synced_records
			(remote_id, source_label, header, payload, created_at, artifact_path, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RemoteID,
		rec.SourceLabel,
		rec.Header,
		rec.Payload,
		rec.CreatedAt,
		rec.ArtifactPath,
		rec.SyncedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: insert record: %w", err)
	}
	localID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: read local id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	rec.LocalID = localID

	s.publish(func(query string) bool {
		return matchesQuery(query, rec) || (prior != nil && matchesQuery(query, prior))
	})
	return nil
}

// Get retrieves a record by its remote id.
func (s *Store) Get(ctx context.Context, remoteID string) (*SyncedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM synced_records WHERE remote_id = ?`, remoteID))
}

// QueryAll returns every record, most recently stored first.
func (s *Store) QueryAll(ctx context.Context) ([]SyncedRecord, error) {
	return s.QuerySearch(ctx, "")
}

// QuerySearch returns records whose source label, header or payload contains
// q, ignoring ASCII case. LIKE wildcards in q match literally. A blank q
// returns every record.
func (s *Store) QuerySearch(ctx context.Context, q string) ([]SyncedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.query(ctx, q)
}

func (s *Store) query(ctx context.Context, q string) ([]SyncedRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM synced_records`
	var args []any

	if q = normalizeQuery(q); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query += ` WHERE source_label LIKE ? ESCAPE '\' OR header LIKE ? ESCAPE '\' OR payload LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY local_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	results := []SyncedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM synced_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count records: %w", err)
	}
	return count, nil
}

// GetMetadata returns the value stored under key, or ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	return s.getMetadata(ctx, key)
}

func (s *Store) getMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata %s: %w", key, err)
	}
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM synced_records").Scan(&stats.RecordCount); err != nil {
		return nil, fmt.Errorf("store: count records: %w", err)
	}

	if v, err := s.getMetadata(ctx, MetaLastSync); err == nil {
		stats.LastSync, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, err := s.getMetadata(ctx, MetaLastCycleID); err == nil {
		stats.LastCycleID = v
	}

	version, err := goose.GetDBVersion(s.db)
	if err != nil {
		return nil, fmt.Errorf("store: schema version: %w", err)
	}
	stats.SchemaVersion = strconv.FormatInt(version, 10)

	return stats, nil
}

// Purge deletes every record and returns how many were removed. Metadata is
// kept. Artifacts on disk are not touched.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM synced_records")
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	n, _ := res.RowsAffected()

	s.publish(func(string) bool { return true })
	return n, nil
}

// Close closes the store and every open subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.subs.closeAll()
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord returns ErrNotFound only for sql.ErrNoRows from *sql.Row.
func scanRecord(sc scanner) (*SyncedRecord, error) {
	var (
		rec      SyncedRecord
		syncedAt string
	)

	err := sc.Scan(
		&rec.LocalID,
		&rec.RemoteID,
		&rec.SourceLabel,
		&rec.Header,
		&rec.Payload,
		&rec.CreatedAt,
		&rec.ArtifactPath,
		&syncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.SyncedAt, _ = time.Parse(time.RFC3339Nano, syncedAt)
	return &rec, nil
}

// normalizeQuery maps a whitespace-only query to the empty query.
func normalizeQuery(q string) string {
	if strings.TrimSpace(q) == "" {
		return ""
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}

// matchesQuery mirrors the QuerySearch predicate in Go. SQLite LIKE folds
// ASCII letters only, and so does this.
func matchesQuery(q string, rec *SyncedRecord) bool {
	q = normalizeQuery(q)
	if q == "" {
		return true
	}
	needle := asciiLower(q)
	return strings.Contains(asciiLower(rec.SourceLabel), needle) ||
		strings.Contains(asciiLower(rec.Header), needle) ||
		strings.Contains(asciiLower(rec.Payload), needle)
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
