package journal_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/journal"
)

func open(t *testing.T, batch int) (*journal.Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	j, err := journal.Open(journal.Config{Path: path, BatchSize: batch, FlushTimeout: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestRecordFlushesOnFullBatch(t *testing.T) {
	j, _ := open(t, 2)
	at := time.UnixMilli(1_700_000_000_123)

	require.NoError(t, j.Record(journal.Entry{Time: at, Session: "s", Kind: journal.KindAction, Action: "Deflect"}))
	got, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got, "first entry still buffered")

	require.NoError(t, j.Record(journal.Entry{Time: at.Add(time.Millisecond), Session: "s", Kind: journal.KindDelay, DelayMs: 40}))
	got, err = j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, journal.KindDelay, got[0].Kind)
	assert.EqualValues(t, 40, got[0].DelayMs)
	assert.Equal(t, "Deflect", got[1].Action)
	assert.True(t, got[1].Time.Equal(at))
}

func TestFlushAndClose(t *testing.T) {
	j, path := open(t, 100)
	require.NoError(t, j.Record(journal.Entry{Time: time.Now(), Session: "a", Kind: journal.KindGesture, Action: "Parry"}))
	require.NoError(t, j.Flush())

	got, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Parry", got[0].Action)

	require.NoError(t, j.Record(journal.Entry{Time: time.Now(), Session: "a", Kind: journal.KindGesture, Action: "Dash in"}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "second close is a no-op")

	err = j.Record(journal.Entry{Kind: journal.KindAction})
	assert.True(t, errors.HasCode(err, errors.ErrStorageWrite))

	// Close flushed the buffered entry
	j2, err := journal.Open(journal.Config{Path: path})
	require.NoError(t, err)
	defer j2.Close()
	got, err = j2.Recent(10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Dash in", got[0].Action)
}

func TestSchemaMismatchRecreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE events (old_column TEXT);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	j, err := journal.Open(journal.Config{Path: path, BatchSize: 1})
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(journal.Entry{Time: time.Now(), Session: "s", Kind: journal.KindAction, Action: "Camera lock"}))
	got, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	backups, err := filepath.Glob(path + ".v99.*.bak")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRecentWrapsScanErrors(t *testing.T) {
	j, path := open(t, 1)
	require.NoError(t, j.Record(journal.Entry{Time: time.Now(), Session: "s", Kind: journal.KindAction, Action: "Deflect"}))

	// a text timestamp keeps its type under INTEGER affinity and cannot scan
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO events (timestamp, session, kind) VALUES ('not-a-time', 's', 'action')`)
	require.NoError(t, err)

	_, err = j.Recent(10)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStorageRead))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := journal.Open(journal.Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStorageInit))
}
