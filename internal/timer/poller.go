package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/cyberia73/steel-check/pkg/logx"
)

// Alerter receives stage-advance events after they have been persisted.
type Alerter interface {
	StageAdvanced(ctx context.Context, key string, st Stage, terminal bool)
}

// Poller drives the stage machine: one bulk read of the timer table per tick,
// one engine decision per row. Ticks run single-flight; a tick that fires
// while the previous one is still in flight is delayed, never overlapped.
type Poller struct {
	store    *Store
	svc      *Service
	alert    Alerter
	interval time.Duration
	now      func() time.Time
	log      logx.Logger

	cron *cron.Cron
}

func NewPoller(svc *Service, alert Alerter, interval time.Duration, log logx.Logger) *Poller {
	if interval <= 0 {
		interval = 150 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		store:    svc.store,
		svc:      svc,
		alert:    alert,
		interval: interval,
		now:      svc.now,
		log:      log,
	}
}

func (p *Poller) Start(ctx context.Context) error {
	if p.cron != nil {
		return nil
	}
	cl := cronLogger{log: p.log}
	c := cron.New(cron.WithChain(cron.DelayIfStillRunning(cl)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("timer: schedule poll: %w", err)
	}
	p.cron = c
	c.Start()
	p.log.Info("poller started", logx.Duration("interval", p.interval))
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}
	done := p.cron.Stop().Done()
	p.cron = nil
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick evaluates every row against one snapshot and one clock reading. A
// failed bulk read aborts the whole tick with no state mutated; per-row
// problems skip only that row.
func (p *Poller) tick(ctx context.Context) {
	rows, err := p.store.ReadAllRows(ctx)
	if err != nil {
		p.log.Warn("poll tick aborted: bulk read failed", logx.Err(err))
		return
	}
	now := p.now()

	for i, cells := range rows {
		rec, err := ParseRecord(i+1, cells)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && pe.Reason != "empty key" {
				p.log.Debug("skipping inert row", logx.Int("row", pe.Row), logx.String("reason", pe.Reason))
			}
			continue
		}
		if !rec.Running() {
			continue
		}
		if d := Decide(rec, now); d.Advance {
			p.advance(ctx, rec.Key, now)
		}
	}
}

// advance re-checks the record under the key lock before persisting: a
// command may have restarted or removed the timer after the snapshot was
// taken. The stage write lands before the alert goes out, so a crash in
// between costs one notification instead of duplicating it.
func (p *Poller) advance(ctx context.Context, key string, now time.Time) {
	unlock := p.svc.locks.lock(NormalizeKey(key))
	defer unlock()

	row, err := p.store.FindRow(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		p.log.Warn("advance aborted", logx.String("key", key), logx.Err(err))
		return
	}
	rec, err := p.store.LoadRecord(ctx, row)
	if err != nil {
		return
	}
	if !rec.Running() {
		return
	}
	d := Decide(rec, now)
	if !d.Advance {
		return
	}

	if d.Terminal {
		err = p.store.MarkDone(ctx, row)
	} else {
		err = p.store.WriteStage(ctx, row, d.Stage)
	}
	if err != nil {
		// Not persisted, so not alerted either; the next tick retries.
		p.log.Warn("stage persist failed", logx.String("key", key), logx.String("stage", d.Stage.String()), logx.Err(err))
		return
	}

	p.log.Info("stage advanced",
		logx.String("key", key),
		logx.String("stage", d.Stage.String()),
		logx.Bool("terminal", d.Terminal),
		logx.Duration("remaining", d.Remaining),
	)
	if p.alert != nil {
		p.alert.StageAdvanced(ctx, key, d.Stage, d.Terminal)
	}
}

// cronLogger adapts logx to the cron logger interface so delayed ticks are
// reported through the normal log stream.
type cronLogger struct {
	log logx.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
