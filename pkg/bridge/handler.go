// Package bridge connects chat messages to the workdir store, the process
// runner and the language model.
//
// Handler processes one inbound message at a time: it classifies the text,
// runs the matching command or model round trip, and sends the outcome
// through a reply.Sequencer so the acknowledgment token is spent exactly
// once. Dispatcher feeds a Handler from many users while keeping each user's
// messages in order.
package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitop-dev/relay/pkg/ai"
	"github.com/bitop-dev/relay/pkg/command"
	"github.com/bitop-dev/relay/pkg/directive"
	"github.com/bitop-dev/relay/pkg/history"
	"github.com/bitop-dev/relay/pkg/reply"
	"github.com/bitop-dev/relay/pkg/workdir"
)

// Inbound is one text message received from the chat platform.
type Inbound struct {
	UserID   string
	Text     string
	AckToken string
}

// Runner executes shell commands and the coding tool. *runner.Runner
// implements it.
type Runner interface {
	RunShell(ctx context.Context, command, workdir string) string
	RunTool(ctx context.Context, instruction, workdir string) (string, error)
}

// Settings are the parts of the conversation setup that can change while
// serving.
type Settings struct {
	Preamble string
	Window   time.Duration
}

// Options wires a Handler. Workdirs, Runner, History, Transport and Completer
// are required.
type Options struct {
	Workdirs  *workdir.Store
	Runner    Runner
	History   history.Store
	Transport reply.Transport
	Completer Completer
	Codec     directive.Codec // zero value uses directive.DefaultTag
	Settings  Settings
	Logger    *zap.Logger
	Now       func() time.Time
}

// Handler processes inbound messages. Messages of one user must not be
// handled concurrently; Dispatcher guarantees that.
type Handler struct {
	workdirs  *workdir.Store
	runner    Runner
	history   history.Store
	transport reply.Transport
	completer Completer
	codec     directive.Codec
	settings  atomic.Pointer[Settings]
	log       *zap.Logger
	now       func() time.Time
}

// NewHandler returns a Handler for opts.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		workdirs:  opts.Workdirs,
		runner:    opts.Runner,
		history:   opts.History,
		transport: opts.Transport,
		completer: opts.Completer,
		codec:     opts.Codec,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if h.codec == (directive.Codec{}) {
		h.codec = directive.NewCodec(directive.DefaultTag)
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.Update(opts.Settings)
	return h
}

// Update swaps the conversation settings used by later messages.
func (h *Handler) Update(s Settings) {
	if s.Window <= 0 {
		s.Window = history.DefaultWindow
	}
	h.settings.Store(&s)
}

// Settings returns the active conversation settings.
func (h *Handler) Settings() Settings {
	return *h.settings.Load()
}

// Handle processes one message. Every failure is turned into text for the
// user or logged; nothing is returned.
func (h *Handler) Handle(ctx context.Context, in Inbound) {
	log := h.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("user", in.UserID),
	)
	seq := reply.New(h.transport, in.UserID, in.AckToken)
	start := h.now()

	cmd := command.Classify(in.Text)
	switch c := cmd.(type) {
	case command.PrintDir:
		h.acknowledge(ctx, log, seq, printDirText(h.workdirs.Workdir(in.UserID)))

	case command.ResetDir:
		dir := h.workdirs.Reset(in.UserID)
		log.Info("workdir reset", zap.String("workdir", dir))
		h.acknowledge(ctx, log, seq, resetDirText(dir))

	case command.ChangeDir:
		h.changeDir(ctx, log, seq, in.UserID, c.Path)

	case command.Shell:
		dir := h.workdirs.Workdir(in.UserID)
		log.Info("running shell command", zap.String("workdir", dir))
		h.acknowledge(ctx, log, seq, h.runner.RunShell(ctx, c.Text, dir))

	case command.Chat:
		h.converse(ctx, log, seq, in.UserID, c.Text)
	}

	log.Debug("message handled",
		zap.String("kind", kindOf(cmd)),
		zap.Int("deliveries", seq.Sent()),
		zap.Duration("duration", h.now().Sub(start)),
	)
}

func (h *Handler) changeDir(ctx context.Context, log *zap.Logger, seq *reply.Sequencer, userID, path string) {
	dir, err := h.workdirs.ChangeDir(userID, path)
	if err != nil {
		missing := path
		var nf *workdir.DirectoryNotFoundError
		if errors.As(err, &nf) {
			missing = nf.Path
		}
		log.Info("workdir change rejected", zap.String("workdir", missing))
		h.acknowledge(ctx, log, seq, changeDirFailText(missing))
		return
	}
	log.Info("workdir changed", zap.String("workdir", dir))
	h.acknowledge(ctx, log, seq, changeDirText(dir))
}

// converse runs the model round trip. The turn is persisted before anything
// is delivered; a failed model call is answered once and not persisted.
func (h *Handler) converse(ctx context.Context, log *zap.Logger, seq *reply.Sequencer, userID, text string) {
	settings := h.Settings()

	msgs, err := h.history.Query(ctx, userID, settings.Window)
	if err != nil {
		log.Warn("history query failed; continuing without history", zap.Error(err))
		msgs = nil
	}
	msgs = append(msgs, ai.NewUserText(text, h.now().UnixMilli()))

	out, err := h.completer.Complete(ctx, msgs, settings.Preamble)
	if err != nil {
		if errors.Is(err, ai.ErrContextOverflow) {
			log.Warn("conversation exceeds the model input window; consider a shorter history window",
				zap.Int("history_messages", len(msgs)-1),
				zap.Duration("window", settings.Window),
			)
		}
		log.Error("model completion failed", zap.Error(err))
		h.acknowledge(ctx, log, seq, MsgModelFailure)
		return
	}

	extraction := h.codec.Extract(out)

	if err := h.history.Append(ctx, userID, text, out); err != nil {
		log.Error("history append failed", zap.Error(err))
	}

	found, ok := extraction.(directive.Found)
	if !ok {
		h.acknowledge(ctx, log, seq, out)
		return
	}

	if found.Commentary != "" {
		h.acknowledge(ctx, log, seq, found.Commentary)
	}
	result := h.runTool(ctx, log, userID, found.Instruction)
	if err := seq.Deliver(ctx, result); err != nil {
		log.Error("delivering tool result failed", zap.Error(err))
	}
}

func (h *Handler) runTool(ctx context.Context, log *zap.Logger, userID, instruction string) string {
	dir := h.workdirs.Workdir(userID)
	log.Info("running coding tool", zap.String("workdir", dir))

	start := h.now()
	stdout, err := h.runner.RunTool(ctx, instruction, dir)
	if err != nil {
		log.Warn("coding tool failed",
			zap.Error(err),
			zap.Duration("duration", h.now().Sub(start)),
		)
		return toolErrorText(err)
	}
	log.Info("coding tool finished", zap.Duration("duration", h.now().Sub(start)))
	return toolResultText(stdout)
}

func (h *Handler) acknowledge(ctx context.Context, log *zap.Logger, seq *reply.Sequencer, text string) {
	if err := seq.Acknowledge(ctx, text); err != nil {
		log.Error("reply failed", zap.Error(err))
	}
}

func kindOf(c command.Command) string {
	switch c.(type) {
	case command.PrintDir:
		return "pwd"
	case command.ResetDir:
		return "cd_reset"
	case command.ChangeDir:
		return "cd"
	case command.Shell:
		return "shell"
	default:
		return "chat"
	}
}
