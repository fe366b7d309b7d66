package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stilllift/pkg/content"
	"stilllift/pkg/db"
)

// timeLayout sorts lexically and matches SQLite's CURRENT_TIMESTAMP prefix.
const timeLayout = "2006-01-02 15:04:05.000000"

// Store composes all sub-interfaces. Consumers should depend on the
// narrower interfaces when possible.
type Store interface {
	CacheStore
	StateStore
	MessageStore
	HistoryStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Debug("Store: cache read failed", "key", key, "error", err)
		return nil, false
	}

	// Transparent decompression; values written before compression pass through.
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}
	return val, true
}

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() any {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool.
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil && len(compressed) < len(val) {
		val = compressed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`, key, val, now())
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Debug("Store: state read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`, key, val, now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Last message ---

func lastMessageKey(mood content.Mood, c content.Context) string {
	return fmt.Sprintf("last_message:%s:%s", mood, c)
}

func (s *SQLiteStore) GetLastMessage(ctx context.Context, mood content.Mood, c content.Context) (*content.Message, bool) {
	raw, ok := s.GetState(ctx, lastMessageKey(mood, c))
	if !ok {
		return nil, false
	}
	var m content.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Warn("Store: discarding unreadable last message", "mood", mood, "context", c, "error", err)
		return nil, false
	}
	return &m, true
}

func (s *SQLiteStore) SetLastMessage(ctx context.Context, mood content.Mood, c content.Context, m content.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return s.SetState(ctx, lastMessageKey(mood, c), string(data))
}

// --- History ---

// SaveNarration inserts r, filling in ID and CreatedAt when unset.
func (s *SQLiteStore) SaveNarration(ctx context.Context, r *NarrationRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narration_history (id, title, message, mood, context, audio_index, intent, outcome, source, candidates_tried, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Message, r.Mood, r.Context, r.AudioIndex, r.Intent, r.Outcome, r.Source, r.CandidatesTried,
		r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save narration: %w", err)
	}
	return nil
}

// RecentNarrations returns up to limit records, newest first.
func (s *SQLiteStore) RecentNarrations(ctx context.Context, limit int) ([]NarrationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, message, mood, context, audio_index, intent, outcome, source, candidates_tried, created_at
		 FROM narration_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NarrationRecord
	for rows.Next() {
		var (
			r                                   NarrationRecord
			title, mood, ctxName, source, stamp sql.NullString
			index, tried                        sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &title, &r.Message, &mood, &ctxName, &index, &r.Intent, &r.Outcome, &source, &tried, &stamp); err != nil {
			return nil, err
		}
		r.Title, r.Mood, r.Context, r.Source = title.String, mood.String, ctxName.String, source.String
		r.AudioIndex, r.CandidatesTried = int(index.Int64), int(tried.Int64)
		r.CreatedAt = parseTime(stamp.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
