package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cyberia73/steel-check/internal/registry"
	"github.com/cyberia73/steel-check/internal/timer"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

// Handlers holds the typed command implementations. They call the same core
// API the poller uses, so command and poll writes serialize on the shared
// per-key locks.
type Handlers struct {
	timers  *timer.Service
	targets *registry.Registry
	log     logx.Logger
}

func NewHandlers(timers *timer.Service, targets *registry.Registry, log logx.Logger) *Handlers {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handlers{timers: timers, targets: targets, log: log}
}

const helpText = `steel-check commands:
/steel <n> — start a 12h timer for steel <n>, or show time remaining
/steel remove <n> — delete the timer row entirely
/done steel <n> — mark the timer finished
/targets list — show alert recipients
/targets add <id...> — add recipients (owner only)
/targets remove <id...> — remove recipients (owner only)
/help — this text`

func (h *Handlers) Help(ctx context.Context, req *Request) error {
	return req.Reply(ctx, helpText)
}

// Steel handles "/steel <n>" and "/steel remove <n>".
func (h *Handlers) Steel(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "usage: /steel <n>")
	}

	if req.Args[0] == "remove" {
		if len(req.Args) < 2 {
			return req.Reply(ctx, "usage: /steel remove <n>")
		}
		key := steelKey(req.Args[1:])
		err := h.timers.Remove(ctx, key)
		switch {
		case errors.Is(err, timer.ErrNotFound):
			return req.Reply(ctx, fmt.Sprintf("no timer named %q", key))
		case err != nil:
			_ = req.Reply(ctx, "store unavailable, try again")
			return err
		}
		return req.Reply(ctx, fmt.Sprintf("%s removed", key))
	}

	key := steelKey(req.Args)
	res, err := h.timers.CreateOrQuery(ctx, key)
	if err != nil {
		_ = req.Reply(ctx, "store unavailable, try again")
		return err
	}

	switch res.Outcome {
	case timer.OutcomeCreated:
		return req.Reply(ctx, fmt.Sprintf("%s timer started, ends in %s", key, timer.FormatRemaining(res.Duration)))
	case timer.OutcomeRunning:
		return req.Reply(ctx, fmt.Sprintf("%s: %s remaining", key, timer.FormatRemaining(res.Remaining)))
	case timer.OutcomeEnded:
		return req.Reply(ctx, fmt.Sprintf("%s has already ended — /done steel to clear it, or wait for the next poll", key))
	case timer.OutcomeRestarted:
		return req.Reply(ctx, fmt.Sprintf("%s restarted, ends in %s", key, timer.FormatRemaining(res.Duration)))
	}
	return nil
}

// Done handles "/done steel <n>".
func (h *Handlers) Done(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 || !strings.EqualFold(req.Args[0], "steel") {
		return req.Reply(ctx, "usage: /done steel <n>")
	}
	key := steelKey(req.Args[1:])
	err := h.timers.ForceComplete(ctx, key)
	switch {
	case errors.Is(err, timer.ErrNotFound):
		return req.Reply(ctx, fmt.Sprintf("no timer named %q", key))
	case errors.Is(err, timer.ErrAlreadyDone):
		return req.Reply(ctx, fmt.Sprintf("%s is already done", key))
	case err != nil:
		_ = req.Reply(ctx, "store unavailable, try again")
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("%s marked done", key))
}

// Targets handles "/targets [list|add|remove]".
func (h *Handlers) Targets(ctx context.Context, req *Request) error {
	sub := "list"
	if len(req.Args) > 0 {
		sub = strings.ToLower(req.Args[0])
	}

	switch sub {
	case "list":
		ids, err := h.targets.List(ctx)
		if err != nil {
			_ = req.Reply(ctx, "store unavailable, try again")
			return err
		}
		if len(ids) == 0 {
			return req.Reply(ctx, "no alert recipients configured")
		}
		return req.Reply(ctx, "alert recipients: "+strings.Join(ids, " "))

	case "add":
		if len(req.Args) < 2 {
			return req.Reply(ctx, "usage: /targets add <id...>")
		}
		added, err := h.targets.Add(ctx, req.Args[1:])
		if err != nil {
			_ = req.Reply(ctx, "store unavailable, try again")
			return err
		}
		if len(added) == 0 {
			return req.Reply(ctx, "nothing added (already present)")
		}
		return req.Reply(ctx, "added: "+strings.Join(added, " "))

	case "remove":
		if len(req.Args) < 2 {
			return req.Reply(ctx, "usage: /targets remove <id...>")
		}
		removed, err := h.targets.Remove(ctx, req.Args[1:])
		if err != nil {
			_ = req.Reply(ctx, "store unavailable, try again")
			return err
		}
		if len(removed) == 0 {
			return req.Reply(ctx, "nothing removed (not present)")
		}
		return req.Reply(ctx, "removed: "+strings.Join(removed, " "))

	default:
		return req.Reply(ctx, "usage: /targets [list|add|remove]")
	}
}

// steelKey rebuilds the timer key from command arguments. The stored key
// keeps its spaces; matching is whitespace-insensitive anyway.
func steelKey(args []string) string {
	return strings.TrimSpace("steel " + strings.Join(args, " "))
}
