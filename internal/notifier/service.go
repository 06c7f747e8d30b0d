// Package notifier fans threshold alerts out to the configured chat sinks.
// Delivery is best-effort per sink: one dead chat never blocks the others,
// and failures are logged, not returned.
package notifier

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cyberia73/steel-check/internal/timer"
	"github.com/cyberia73/steel-check/internal/transport"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

// Sender is the slice of the chat adapter the notifier needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Mentions supplies the recipient list. It is read fresh on every dispatch;
// registry edits take effect on the next alert without a restart.
type Mentions interface {
	List(ctx context.Context) ([]string, error)
}

type Service struct {
	send     Sender
	mentions Mentions
	limiter  *rate.Limiter
	log      logx.Logger

	mu    sync.RWMutex
	sinks []int64
}

func New(send Sender, mentions Mentions, sinks []int64, perSec int, log logx.Logger) *Service {
	if perSec <= 0 {
		perSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		send:     send,
		mentions: mentions,
		limiter:  rate.NewLimiter(rate.Limit(perSec), perSec),
		log:      log,
		sinks:    append([]int64(nil), sinks...),
	}
	if len(sinks) == 0 {
		s.log.Warn("no alert sinks configured; threshold alerts will be dropped")
	}
	return s
}

// SetSinks swaps the sink list (config hot reload).
func (s *Service) SetSinks(sinks []int64) {
	s.mu.Lock()
	s.sinks = append([]int64(nil), sinks...)
	s.mu.Unlock()
}

// Broadcast delivers text to every sink independently.
func (s *Service) Broadcast(ctx context.Context, text string) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()

	if len(sinks) == 0 {
		s.log.Warn("broadcast skipped: no sinks", logx.Int("text_len", len(text)))
		return
	}
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}
	for _, chatID := range sinks {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("broadcast aborted", logx.Err(err))
			return
		}
		if _, err := s.send.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
			s.log.Warn("broadcast sink failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
	}
}

// StageAdvanced renders the alert for a persisted stage transition and
// broadcasts it.
func (s *Service) StageAdvanced(ctx context.Context, key string, st timer.Stage, terminal bool) {
	s.Broadcast(ctx, s.render(ctx, key, st, terminal))
}

var stageLines = map[timer.Stage]string{
	timer.StageFourH:   "⏳ %s — 4 hours remaining.",
	timer.StageTwoH:    "⏳ %s — 2 hours remaining.",
	timer.StageOneH:    "⏳ %s — 1 hour remaining.",
	timer.StageThirtyM: "⚠️ %s — 30 minutes remaining.",
	timer.StageDone:    "🔔 %s has ended!",
}

func (s *Service) render(ctx context.Context, key string, st timer.Stage, terminal bool) string {
	tmpl, ok := stageLines[st]
	if !ok {
		tmpl = "%s"
	}
	msg := fmt.Sprintf(tmpl, html.EscapeString(key))

	if s.mentions == nil {
		return msg
	}
	ids, err := s.mentions.List(ctx)
	if err != nil {
		// The alert still goes out; only the mention suffix is lost.
		s.log.Warn("mention list read failed", logx.Err(err))
		return msg
	}
	if len(ids) == 0 {
		return msg
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, mention(id))
	}
	return msg + "\n" + strings.Join(parts, " ")
}

// mention renders a recipient id. Numeric ids become inline user mentions;
// anything else is assumed to be ready-to-send text.
func mention(id string) string {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return fmt.Sprintf(`<a href="tg://user?id=%s">@%s</a>`, id, id)
	}
	return html.EscapeString(id)
}
