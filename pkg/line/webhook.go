// Package line is the LINE Messaging API front-end: a signed webhook that
// feeds text messages to the dispatcher, and a client that sends replies and
// pushes.
package line

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bitop-dev/relay/pkg/bridge"
)

// SignatureHeader carries the request body signature.
const SignatureHeader = "X-Line-Signature"

const maxBodyBytes = 1 << 20

// Submitter accepts inbound messages. *bridge.Dispatcher implements it.
type Submitter interface {
	Submit(in bridge.Inbound) error
}

type webhookBody struct {
	Destination string  `json:"destination"`
	Events      []event `json:"events"`
}

type event struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// Webhook verifies and decodes webhook calls. Text message events are
// submitted; everything else is ignored. The response is sent as soon as the
// events are queued.
type Webhook struct {
	secret string
	sink   Submitter
	log    *zap.Logger
}

// NewWebhook returns a Webhook that checks signatures with channelSecret.
func NewWebhook(channelSecret string, sink Submitter, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{secret: channelSecret, sink: sink, log: logger}
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := Verify(wh.secret, body, r.Header.Get(SignatureHeader)); err != nil {
		wh.log.Warn("webhook signature rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var payload webhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	for _, ev := range payload.Events {
		in, ok := toInbound(ev)
		if !ok {
			wh.log.Debug("ignoring event",
				zap.String("type", ev.Type),
				zap.String("message_type", ev.Message.Type),
			)
			continue
		}
		if err := wh.sink.Submit(in); err != nil {
			if errors.Is(err, bridge.ErrClosed) {
				http.Error(w, "shutting down", http.StatusServiceUnavailable)
				return
			}
			wh.log.Error("submit failed", zap.String("user", in.UserID), zap.Error(err))
		}
	}
	_, _ = io.WriteString(w, "OK")
}

func toInbound(ev event) (bridge.Inbound, bool) {
	if ev.Type != "message" || ev.Message.Type != "text" || ev.Source.UserID == "" {
		return bridge.Inbound{}, false
	}
	return bridge.Inbound{
		UserID:   ev.Source.UserID,
		Text:     ev.Message.Text,
		AckToken: ev.ReplyToken,
	}, true
}

// NewRouter mounts wh at callbackPath (POST) next to a /healthz probe.
func NewRouter(callbackPath string, wh *Webhook) http.Handler {
	if callbackPath == "" {
		callbackPath = "/callback"
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	r.Method(http.MethodPost, callbackPath, wh)
	return r
}
