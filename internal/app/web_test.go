package app_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_link/internal/app"
	"github.com/relabs-tech/motion_link/internal/journal"
)

type fakeRecent struct {
	entries []journal.Entry
	err     error
	asked   int
}

func (f *fakeRecent) Recent(n int) ([]journal.Entry, error) {
	f.asked = n
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.entries) {
		return f.entries[:n], nil
	}
	return f.entries, nil
}

func TestJournalHandler(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000).UTC()
	src := &fakeRecent{entries: []journal.Entry{
		{Time: at, Session: "s1", Kind: journal.KindDelay, DelayMs: 40},
		{Time: at, Session: "s1", Kind: journal.KindAction, Action: "Deflect"},
	}}
	h := app.JournalHandler(src)

	t.Run("default count", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, 50, src.asked)

		var got []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "delay", got[0]["kind"])
		assert.EqualValues(t, 40, got[0]["delay_ms"])
		assert.NotContains(t, got[0], "action")
		assert.Equal(t, "Deflect", got[1]["action"])
	})

	t.Run("explicit count", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal?n=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, src.asked)
	})

	t.Run("count is capped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal?n=99999", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1000, src.asked)
	})

	t.Run("bad count", func(t *testing.T) {
		for _, q := range []string{"0", "-3", "abc"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal?n="+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/journal", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestJournalHandlerEmptyAndFailing(t *testing.T) {
	rec := httptest.NewRecorder()
	app.JournalHandler(&fakeRecent{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	app.JournalHandler(&fakeRecent{err: errors.New("db gone")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
