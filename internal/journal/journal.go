// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package journal records listener events to SQLite in batches.
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/relabs-tech/motion_link/internal/logger"
)

const (
	defaultDirPerm      = 0o755
	defaultBatchSize    = 50
	defaultFlushTimeout = 2 * time.Second
)

type Kind string

const (
	KindAction  Kind = "action"  // special_action received
	KindGesture Kind = "gesture" // recognised from motion
	KindDelay   Kind = "delay"   // reported round-trip latency
)

type Entry struct {
	Time    time.Time `json:"time"`
	Session string    `json:"session"`
	Kind    Kind      `json:"kind"`
	Action  string    `json:"action,omitempty"`
	DelayMs int64     `json:"delay_ms,omitempty"`
}

type Config struct {
	Path         string
	BatchSize    int
	FlushTimeout time.Duration
}

// Journal buffers entries and writes them in one transaction per batch,
// either when the batch is full or on the flush timer.
type Journal struct {
	db  *sql.DB
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	buffer   []Entry
	ticker   *time.Ticker
	shutdown chan struct{}
	done     chan struct{}
	closed   bool
}

func Open(cfg Config) (*Journal, error) {
	errFactory := errors.New()
	log := logger.Component("journal")

	if cfg.Path == "" {
		return nil, errFactory.WithMessage(errors.ErrStorageInit, "journal path is empty")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(errors.ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}
	// one writer keeps SQLite happy
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db, cfg.Path, log); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:       db,
		cfg:      cfg,
		log:      log,
		buffer:   make([]Entry, 0, cfg.BatchSize),
		ticker:   time.NewTicker(cfg.FlushTimeout),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go j.flusher()

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Msg("journal opened")
	return j, nil
}

// Record buffers e and flushes when the batch is full.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return errors.New().WithMessage(errors.ErrStorageWrite, "journal closed")
	}
	j.buffer = append(j.buffer, e)
	if len(j.buffer) >= j.cfg.BatchSize {
		return j.flush()
	}
	return nil
}

// Flush writes any buffered entries now.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

// Recent returns up to n entries, newest first. Buffered entries are not
// included until flushed.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(recentEventsSQL, n)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrStorageRead, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			ts   int64
			kind string
		)
		if err := rows.Scan(&ts, &e.Session, &kind, &e.Action, &e.DelayMs); err != nil {
			return nil, errors.New().Wrap(errors.ErrStorageRead, err)
		}
		e.Time = time.UnixMilli(ts)
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(errors.ErrStorageRead, err)
	}
	return out, nil
}

// Close flushes and closes the database. Safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.shutdown)
	j.ticker.Stop()
	<-j.done

	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.log.Debug().Err(err).Msg("wal checkpoint failed")
	}
	if err := j.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrStorageClose, err)
	}
	j.log.Info().Msg("journal closed")
	return nil
}

func (j *Journal) flusher() {
	defer close(j.done)
	for {
		select {
		case <-j.ticker.C:
			j.mu.Lock()
			if err := j.flush(); err != nil {
				logger.ErrorWithCode(err).Str("component", "journal").Msg("periodic flush failed")
			}
			j.mu.Unlock()
		case <-j.shutdown:
			j.mu.Lock()
			if err := j.flush(); err != nil {
				logger.ErrorWithCode(err).Str("component", "journal").Msg("final flush failed")
			}
			j.mu.Unlock()
			return
		}
	}
}

// flush must be called with mu held. On failure the batch is dropped so
// a poisoned entry cannot block later ones.
func (j *Journal) flush() error {
	if len(j.buffer) == 0 {
		return nil
	}
	errFactory := errors.New()
	batch := len(j.buffer)
	defer func() { j.buffer = j.buffer[:0] }()

	tx, err := j.db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageWrite, err)
	}
	stmt, err := tx.Prepare(insertEventSQL)
	if err != nil {
		_ = tx.Rollback()
		return errFactory.Wrap(errors.ErrStorageWrite, err)
	}
	defer stmt.Close()

	for _, e := range j.buffer {
		if _, err := stmt.Exec(e.Time.UnixMilli(), e.Session, string(e.Kind), e.Action, e.DelayMs); err != nil {
			_ = tx.Rollback()
			return errFactory.WithData(errors.ErrStorageWrite, struct {
				Kind  string
				Error string
			}{
				Kind:  string(e.Kind),
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrStorageWrite, err)
	}
	j.log.Debug().Int("records", batch).Msg("flushed journal")
	return nil
}
