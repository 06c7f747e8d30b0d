// Package app wires the components into one explicit context object. Nothing
// reaches for globals; every dependency is passed in here.
package app

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/cyberia73/steel-check/internal/bot"
	"github.com/cyberia73/steel-check/internal/config"
	"github.com/cyberia73/steel-check/internal/notifier"
	"github.com/cyberia73/steel-check/internal/registry"
	rtsup "github.com/cyberia73/steel-check/internal/runtime/supervisor"
	"github.com/cyberia73/steel-check/internal/sheet"
	"github.com/cyberia73/steel-check/internal/timer"
	kit "github.com/cyberia73/steel-check/internal/transport"
	telegram "github.com/cyberia73/steel-check/internal/transport/telegram/adapter"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   sheet.Client

	timers  *timer.Service
	poller  *timer.Poller
	targets *registry.Registry
	notif   *notifier.Service
	router  *bot.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("sheet.busy_timeout", cfg.Sheet.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := sheet.Open(sheet.Config{
		Driver:      cfg.Sheet.Driver,
		Path:        cfg.Sheet.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "sheet")))
	if err != nil {
		return nil, err
	}
	log.Info("sheet store opened", logx.String("driver", cfg.Sheet.Driver), logx.String("path", cfg.Sheet.Path))

	defaultDur, err := config.ParseDurationOrDefault("timers.default_duration", cfg.Timers.DefaultDuration, 12*time.Hour)
	if err != nil {
		return nil, err
	}
	pollInterval, err := config.ParseDurationOrDefault("timers.poll_interval", cfg.Timers.PollInterval, 150*time.Second)
	if err != nil {
		return nil, err
	}

	timerStore := timer.NewStore(store, cfg.Sheet.TimerTable)
	timers := timer.NewService(timerStore, defaultDur, log.With(logx.String("comp", "timer")))
	targets := registry.New(store, cfg.Sheet.MentionTable, cfg.Alerts.GroupLabel, log.With(logx.String("comp", "registry")))
	notif := notifier.New(ad, targets, cfg.Alerts.ChatIDs, cfg.Alerts.RatePerSec, log.With(logx.String("comp", "notifier")))
	poller := timer.NewPoller(timers, notif, pollInterval, log.With(logx.String("comp", "poller")))

	handlers := bot.NewHandlers(timers, targets, log.With(logx.String("comp", "commands")))
	router := bot.NewRouter(handlers, ad, cfg.Telegram.OwnerUserIDs, log.With(logx.String("comp", "commands")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		timers:  timers,
		poller:  poller,
		targets: targets,
		notif:   notif,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// Poll loop starts once, after the chat session is up, so the first tick
	// can already deliver alerts.
	if err := a.poller.Start(a.sup.Context()); err != nil {
		return err
	}

	// Best-effort Telegram /menu autocomplete.
	if up, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		a.sup.Go0("telegram.menu.update", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 5*time.Second)
			defer cancel()
			_ = up.UpdateMenuCommands(mctx, bot.MenuCommands())
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies the hot-reloadable parts of a new config. Sheet and
// poll-interval changes need a restart; they are warned about, not applied.
func (a *App) applyConfig(old, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.notif.SetSinks(cfg.Alerts.ChatIDs)

	if old != nil {
		if old.Sheet != cfg.Sheet {
			a.log.Warn("sheet config changed; restart required for changes to take effect")
		}
		if old.Timers != cfg.Timers {
			a.log.Warn("timers config changed; restart required for changes to take effect")
		}
		if !reflect.DeepEqual(old.Telegram, cfg.Telegram) && old.Telegram.Token != cfg.Telegram.Token {
			a.log.Warn("telegram token changed; restart required for changes to take effect")
		}
	}
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bounded shutdown steps: one stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("poller", 2*time.Second, func(c context.Context) error { return a.poller.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("sheet", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
