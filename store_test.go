package vault

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insert(t *testing.T, s *Store, remoteID, label, header, payload string) *SyncedRecord {
	t.Helper()
	rec := &SyncedRecord{
		RemoteID:     remoteID,
		SourceLabel:  label,
		Header:       header,
		Payload:      payload,
		CreatedAt:    "2024-01-01T00:00:00Z",
		ArtifactPath: "/artifacts/" + remoteID + ".csv",
	}
	if err := s.InsertOrReplace(context.Background(), rec); err != nil {
		t.Fatalf("InsertOrReplace(%s): %v", remoteID, err)
	}
	return rec
}

func TestNewStore_CreatesTables(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"synced_records", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestNewStore_EnablesWAL(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", journalMode)
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "vault.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	insert(t, s, "a1", "sms", "h", "p")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(context.Background(), "a1"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestInsertOrReplace_Dedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := insert(t, s, "dup", "sms", "h1", "first payload")
	second := insert(t, s, "dup", "whatsapp", "h2", "second payload")

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}

	got, err := s.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Payload != "second payload" || got.SourceLabel != "whatsapp" || got.Header != "h2" {
		t.Errorf("row = %+v, want fields of second insert", got)
	}
	if second.LocalID <= first.LocalID {
		t.Errorf("replacement LocalID = %d, want > %d", second.LocalID, first.LocalID)
	}
	if got.LocalID != second.LocalID {
		t.Errorf("stored LocalID = %d, want %d", got.LocalID, second.LocalID)
	}
}

func TestInsertOrReplace_RequiresArtifactPath(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertOrReplace(context.Background(), &SyncedRecord{RemoteID: "a1", CreatedAt: "t"})
	if err == nil {
		t.Fatal("expected error for empty ArtifactPath")
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestInsertOrReplace_ConcurrentSameRemoteID(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &SyncedRecord{RemoteID: "same", SourceLabel: "l", Header: "h", CreatedAt: "t", ArtifactPath: "/p"}
			if err := s.InsertOrReplace(context.Background(), rec); err != nil {
				t.Errorf("InsertOrReplace: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := s.Count(context.Background()); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestQueryAll_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, "a", "l", "h", "1")
	insert(t, s, "b", "l", "h", "2")
	insert(t, s, "c", "l", "h", "3")

	got, err := s.QueryAll(context.Background())
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	assertIDs(t, got, "c", "b", "a")
}

func TestQuerySearch_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, "r1", "l", "h", "hello world")
	insert(t, s, "r2", "l", "h", "goodbye")
	insert(t, s, "r3", "l", "h", "HELLO again")

	got, err := s.QuerySearch(context.Background(), "hello")
	if err != nil {
		t.Fatalf("QuerySearch: %v", err)
	}
	assertIDs(t, got, "r3", "r1")
}

func TestQuerySearch_Fields(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, "label", "WhatsApp", "h", "p")
	insert(t, s, "header", "sms", "Bank Alert", "p")
	insert(t, s, "payload", "sms", "h", "your bank code")
	insert(t, s, "none", "sms", "h", "p")

	tests := []struct {
		q    string
		want []string
	}{
		{"whatsapp", []string{"label"}},
		{"bank", []string{"payload", "header"}},
		{"", []string{"none", "payload", "header", "label"}},
		{"   ", []string{"none", "payload", "header", "label"}},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got, err := s.QuerySearch(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("QuerySearch: %v", err)
			}
			assertIDs(t, got, tt.want...)
		})
	}
}

func TestQuerySearch_WildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, "pct", "l", "h", "100% done")
	insert(t, s, "under", "l", "h", "snake_case")
	insert(t, s, "plain", "l", "h", "100 done snakeXcase")
	insert(t, s, "slash", "l", "h", `C:\temp`)

	tests := []struct {
		q    string
		want []string
	}{
		{"%", []string{"pct"}},
		{"_", []string{"under"}},
		{`\`, []string{"slash"}},
	}
	for _, tt := range tests {
		got, err := s.QuerySearch(context.Background(), tt.q)
		if err != nil {
			t.Fatalf("QuerySearch(%q): %v", tt.q, err)
		}
		assertIDs(t, got, tt.want...)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestMetadataAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMetadata(ctx, MetaLastSync); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetadata err = %v, want ErrNotFound", err)
	}

	insert(t, s, "a", "l", "h", "p")
	if err := s.SetMetadata(ctx, MetaLastSync, "2024-05-01T10:00:00Z"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, MetaLastCycleID, "01HX"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, MetaLastCycleID, "01HY"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", stats.RecordCount)
	}
	if stats.LastCycleID != "01HY" {
		t.Errorf("LastCycleID = %q, want 01HY", stats.LastCycleID)
	}
	if stats.LastSync.IsZero() {
		t.Error("LastSync is zero")
	}
	if stats.SchemaVersion != "2" {
		t.Errorf("SchemaVersion = %q, want 2", stats.SchemaVersion)
	}
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insert(t, s, "a", "l", "h", "p")
	insert(t, s, "b", "l", "h", "p")
	if err := s.SetMetadata(ctx, MetaLastCycleID, "x"); err != nil {
		t.Fatal(err)
	}

	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 2 {
		t.Errorf("Purge removed %d, want 2", n)
	}
	if c, _ := s.Count(ctx); c != 0 {
		t.Errorf("Count = %d, want 0", c)
	}
	if v, _ := s.GetMetadata(ctx, MetaLastCycleID); v != "x" {
		t.Errorf("metadata should survive purge, got %q", v)
	}
}

func TestStore_ClosedReturnsErrStoreClosed(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	ctx := context.Background()
	if _, err := s.QueryAll(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("QueryAll err = %v", err)
	}
	if err := s.InsertOrReplace(ctx, &SyncedRecord{RemoteID: "a", ArtifactPath: "/p"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("InsertOrReplace err = %v", err)
	}
	if _, err := s.Subscribe(""); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Subscribe err = %v", err)
	}
}

func TestMatchesQuery_AgreesWithSearch(t *testing.T) {
	rec := &SyncedRecord{SourceLabel: "Mail", Header: "Ünïcode", Payload: "50% off_now"}
	tests := []struct {
		q    string
		want bool
	}{
		{"", true},
		{"mail", true},
		{"MAIL", true},
		{"50%", true},
		{"off_now", true},
		{"offXnow", false},
		{"ünïcode", false},
		{"Ünïcode", true},
	}
	for _, tt := range tests {
		if got := matchesQuery(tt.q, rec); got != tt.want {
			t.Errorf("matchesQuery(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func assertIDs(t *testing.T, got []SyncedRecord, want ...string) {
	t.Helper()
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.RemoteID
	}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
