package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/backend"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// LocalIDPrefix marks entry ids assigned on the client.
const LocalIDPrefix = "local-"

// Ledger is the session's ordered list of ingestion attempts. It mirrors the
// backend's history and accepts optimistic entries between refreshes.
type Ledger interface {
	// Refresh replaces the list with the backend's history. On failure the
	// previous entries stay and Error reports the failure.
	Refresh(ctx context.Context) error

	// AddEntry prepends an entry. An entry without an id gets a client id
	// and is kept as pending until the backend reports it.
	AddEntry(entry models.HistoryEntry) (models.HistoryEntry, error)

	// UpdateEntry merges update into the entry with id. Unknown ids are ignored.
	UpdateEntry(id string, update models.HistoryUpdate) error

	// RemoveEntry drops the pending entry with id. Entries reported by the
	// backend are kept.
	RemoveEntry(id string) error

	// NewEntryID returns a fresh client-side entry id.
	NewEntryID() string

	Entries() []models.HistoryEntry
	Loading() bool
	Error() error

	// Close ends the ledger; later calls return apperrors.ErrSessionClosed.
	Close()
}

type ledger struct {
	backend         BackendClient
	reconcileWindow time.Duration
	logger          *zap.Logger
	now             func() time.Time
	group           singleflight.Group

	mu      sync.Mutex
	entries []models.HistoryEntry
	loading int
	lastErr error
	closed  bool
}

// NewLedger creates an empty ledger. reconcileWindow bounds how long a
// pending entry survives refreshes that do not yet include it; zero makes a
// refresh replace the list outright.
func NewLedger(client BackendClient, reconcileWindow time.Duration, logger *zap.Logger) Ledger {
	return &ledger{
		backend:         client,
		reconcileWindow: reconcileWindow,
		logger:          logger.Named("history-ledger"),
		now:             time.Now,
	}
}

var _ Ledger = (*ledger)(nil)

func (l *ledger) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	l.loading++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.loading--
		l.mu.Unlock()
	}()

	// Overlapping refreshes share one backend request. It is detached from
	// the caller that started it; each caller stops waiting on its own ctx.
	ch := l.group.DoChan("refresh", func() (any, error) {
		return l.backend.InjectionHistory(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		l.logger.Debug("History refresh abandoned by caller", zap.Error(ctx.Err()))
		return ctx.Err()
	}
	result, err, shared := res.Val, res.Err, res.Shared

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return apperrors.ErrSessionClosed
	}

	if err != nil {
		if !errors.Is(err, apperrors.ErrFetch) && !errors.Is(err, apperrors.ErrUnauthenticated) {
			err = &apperrors.FetchError{Detail: backend.MsgHistoryFailed, Err: err}
		}
		l.lastErr = err
		l.logger.Error("Failed to load injection history",
			zap.Bool("shared", shared),
			zap.String("error", logging.SanitizeError(err)))
		return err
	}

	fresh := result.([]models.HistoryEntry)
	l.entries = l.reconcile(fresh)
	l.lastErr = nil

	l.logger.Debug("Loaded injection history",
		zap.Int("entries", len(l.entries)),
		zap.Bool("shared", shared))
	return nil
}

// reconcile builds the new list from fresh backend entries. Pending entries
// that the backend now reports are dropped; unmatched pending entries still
// within the reconcile window stay at the front in their current order.
func (l *ledger) reconcile(fresh []models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(fresh)+1)

	if l.reconcileWindow > 0 {
		now := l.now()
		for _, e := range l.entries {
			if !e.Pending {
				continue
			}
			if now.Sub(e.Timestamp) > l.reconcileWindow {
				continue
			}
			if l.matchesAny(e, fresh) {
				continue
			}
			out = append(out, e)
		}
	}

	for _, e := range fresh {
		e.Pending = false
		out = append(out, e.Clone())
	}
	return out
}

func (l *ledger) matchesAny(pending models.HistoryEntry, fresh []models.HistoryEntry) bool {
	for _, e := range fresh {
		if e.ID == pending.ID {
			return true
		}
		if e.Kind != pending.Kind || e.Name != pending.Name {
			continue
		}
		delta := e.Timestamp.Sub(pending.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= l.reconcileWindow {
			return true
		}
	}
	return false
}

func (l *ledger) AddEntry(entry models.HistoryEntry) (models.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return models.HistoryEntry{}, apperrors.ErrSessionClosed
	}

	entry = entry.Clone()
	if entry.ID == "" {
		entry.ID = l.NewEntryID()
	}
	if strings.HasPrefix(entry.ID, LocalIDPrefix) {
		entry.Pending = true
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	l.entries = append([]models.HistoryEntry{entry}, l.entries...)

	l.logger.Debug("Added history entry",
		zap.String("id", entry.ID),
		zap.String("name", entry.Name),
		zap.String("status", string(entry.Status)))

	return entry.Clone(), nil
}

func (l *ledger) UpdateEntry(id string, update models.HistoryUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return apperrors.ErrSessionClosed
	}

	for i := range l.entries {
		if l.entries[i].ID == id {
			update.Apply(&l.entries[i])
			return nil
		}
	}
	return nil
}

func (l *ledger) RemoveEntry(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return apperrors.ErrSessionClosed
	}

	for i := range l.entries {
		if l.entries[i].ID == id && l.entries[i].Pending {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			l.logger.Debug("Removed history entry", zap.String("id", id))
			return nil
		}
	}
	return nil
}

func (l *ledger) NewEntryID() string {
	return LocalIDPrefix + uuid.New().String()
}

func (l *ledger) Entries() []models.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.HistoryEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

func (l *ledger) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading > 0
}

func (l *ledger) Error() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.entries = nil
}
