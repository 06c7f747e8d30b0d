package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logx "github.com/cyberia73/steel-check/pkg/logx"
)

var ErrAlreadyDone = errors.New("timer: already done")

// lockTable serializes store mutations per normalized key, closing the race
// between a poll tick and a command arriving for the same timer. Entries are
// never evicted; the set of timer keys is small and stable.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	t.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Outcome classifies a CreateOrQuery result for the command surface.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeRunning
	OutcomeEnded
	OutcomeRestarted
)

type QueryResult struct {
	Outcome   Outcome
	Key       string
	Duration  time.Duration
	Remaining time.Duration
}

// Service is the command-facing core API. The poller shares its lock table so
// both writers serialize on the same key.
type Service struct {
	store      *Store
	locks      *lockTable
	defaultDur time.Duration
	now        func() time.Time
	log        logx.Logger
}

func NewService(store *Store, defaultDur time.Duration, log logx.Logger) *Service {
	if defaultDur <= 0 {
		defaultDur = 12 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:      store,
		locks:      newLockTable(),
		defaultDur: defaultDur,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// CreateOrQuery is the /steel command core: create a fresh run when the timer
// is absent or unreadable, report remaining time when it is running, restart
// it when a previous run completed.
func (s *Service) CreateOrQuery(ctx context.Context, key string) (QueryResult, error) {
	unlock := s.locks.lock(NormalizeKey(key))
	defer unlock()

	now := s.now()
	row, err := s.store.FindRow(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if _, err := s.store.CreateRecord(ctx, key, s.defaultDur, now); err != nil {
			return QueryResult{}, err
		}
		s.log.Info("timer created", logx.String("key", key), logx.Duration("duration", s.defaultDur))
		return QueryResult{Outcome: OutcomeCreated, Key: key, Duration: s.defaultDur}, nil
	}
	if err != nil {
		return QueryResult{}, err
	}

	rec, err := s.store.LoadRecord(ctx, row)
	var pe *ParseError
	if errors.As(err, &pe) {
		// Unreadable row: overwrite in place with a fresh run.
		if err := s.store.RestartRecord(ctx, row, key, s.defaultDur, now); err != nil {
			return QueryResult{}, err
		}
		s.log.Warn("inert timer row overwritten", logx.String("key", key), logx.Int("row", row), logx.String("reason", pe.Reason))
		return QueryResult{Outcome: OutcomeCreated, Key: key, Duration: s.defaultDur}, nil
	}
	if err != nil {
		return QueryResult{}, err
	}

	if rec.Running() {
		rem := rec.Remaining(now)
		if rem <= 0 {
			return QueryResult{Outcome: OutcomeEnded, Key: key}, nil
		}
		return QueryResult{Outcome: OutcomeRunning, Key: key, Remaining: rem}, nil
	}

	// Previous run completed: start over.
	if err := s.store.RestartRecord(ctx, row, key, s.defaultDur, now); err != nil {
		return QueryResult{}, err
	}
	s.log.Info("timer restarted", logx.String("key", key), logx.Duration("duration", s.defaultDur))
	return QueryResult{Outcome: OutcomeRestarted, Key: key, Duration: s.defaultDur}, nil
}

// ForceComplete is the /done command core: soft completion. The row stays in
// the table with status and stage DONE.
func (s *Service) ForceComplete(ctx context.Context, key string) error {
	unlock := s.locks.lock(NormalizeKey(key))
	defer unlock()

	row, err := s.store.FindRow(ctx, key)
	if err != nil {
		return err
	}
	rec, err := s.store.LoadRecord(ctx, row)
	var pe *ParseError
	if errors.As(err, &pe) {
		// Unreadable rows count as no timer at all; leave them untouched.
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !rec.Running() {
		return ErrAlreadyDone
	}
	if err := s.store.MarkDone(ctx, row); err != nil {
		return err
	}
	s.log.Info("timer force-completed", logx.String("key", key), logx.Int("row", row))
	return nil
}

// Remove hard-deletes the timer row.
func (s *Service) Remove(ctx context.Context, key string) error {
	unlock := s.locks.lock(NormalizeKey(key))
	defer unlock()

	row, err := s.store.FindRow(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRow(ctx, row); err != nil {
		return err
	}
	s.log.Info("timer removed", logx.String("key", key), logx.Int("row", row))
	return nil
}

// FormatRemaining renders a countdown as "Xh Ym Zs". Negative values clamp
// to zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}
