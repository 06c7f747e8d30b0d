// Package bot maps the closed command set to typed handlers. There is no
// dynamic command registry: the set of commands is fixed at compile time and
// routed with a switch, which keeps dispatch auditable.
package bot

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rtsup "github.com/cyberia73/steel-check/internal/runtime/supervisor"
	kit "github.com/cyberia73/steel-check/internal/transport"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends a plain-text response for the request.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

const commandTimeout = 30 * time.Second

type Router struct {
	handlers *Handlers
	adapter  kit.Adapter
	log      logx.Logger

	mu     sync.RWMutex
	owners []int64

	jobs chan func()
}

func NewRouter(handlers *Handlers, adapter kit.Adapter, owners []int64, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		handlers: handlers,
		adapter:  adapter,
		owners:   append([]int64(nil), owners...),
		log:      log,
		jobs:     make(chan func(), 256),
	}
}

// SetOwners updates the owner list used for restricted commands. Safe during
// hot reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) ownersSnapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int64(nil), r.owners...)
}

// MenuCommands is the Telegram /menu autocomplete list.
func MenuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "steel", Description: "start or query a steel timer"},
		{Command: "done", Description: "mark a steel timer finished"},
		{Command: "targets", Description: "manage alert recipients"},
		{Command: "help", Description: "show usage"},
	}
}

// DispatchLoop consumes transport updates until the context ends. Handlers
// run on a bounded worker pool so one slow store call cannot stall the
// update stream.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "bot.router"))),
		rtsup.WithCancelOnError(false),
	)
	r.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() { close(r.jobs) })
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					// Middleware already recovers; this keeps the worker
					// alive if something slips past it.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.routeUpdate(ctx, up)
		}
	}
}

// tryEnqueue is panic-safe: the jobs channel may already be closed during
// shutdown.
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

func (r *Router) routeUpdate(root context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	args := parts[1:]

	var (
		handle    HandlerFunc
		ownerOnly bool
	)
	switch word {
	case "steel":
		handle = r.handlers.Steel
	case "done":
		handle = r.handlers.Done
	case "targets":
		handle = r.handlers.Targets
		ownerOnly = len(args) > 0 && args[0] != "list"
	case "help", "start":
		handle = r.handlers.Help
	default:
		// In groups the bot stays quiet about commands meant for other bots.
		if !msg.IsGroup {
			_, _ = r.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "unknown command, try /help", nil)
		}
		return
	}

	owners := r.ownersSnapshot()
	if ownerOnly && !isOwner(msg.FromID, owners) {
		_, _ = r.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "unauthorized", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Command: word,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", word),
		),
	}

	final := Chain(
		handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(commandTimeout),
	)

	if !r.tryEnqueue(func() { _ = final(root, req) }) {
		_, _ = r.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(n, 36)
}
