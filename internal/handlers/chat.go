package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/anshumansp/Business-Consultant-Agent/internal/middleware"
	"github.com/anshumansp/Business-Consultant-Agent/internal/relay"
	"github.com/anshumansp/Business-Consultant-Agent/internal/sse"
)

// MaxBodyBytes bounds the size of a relay request body.
const MaxBodyBytes = 1 << 20

type ChatHandler struct {
	relay  *relay.Service
	logger *log.Logger
}

func NewChatHandler(svc *relay.Service, logger *log.Logger) *ChatHandler {
	return &ChatHandler{relay: svc, logger: logger}
}

// Stream handles POST /api/chat: the conversation is relayed upstream and
// the reply streamed back as server-sent events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("request_id", middleware.GetRequestID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Request body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse(relay.MsgMalformedBody))
		return
	}

	req, err := relay.Validate(body)
	if err != nil {
		logger.Debug("rejected chat request", "err", err)
		handleRelayError(w, err)
		return
	}

	err = h.relay.Run(r.Context(), req, newSSESink(w))
	h.logOutcome(logger, err, len(req.Messages))
	if err == nil {
		return
	}

	var uerr *relay.UpstreamError
	if errors.As(err, &uerr) && uerr.Phase == relay.BeforeStream {
		handleRelayError(w, err)
	}
}

func (h *ChatHandler) logOutcome(logger *log.Logger, err error, messages int) {
	var uerr *relay.UpstreamError
	switch {
	case err == nil:
		logger.Debug("chat stream completed", "messages", messages)
	case errors.Is(err, relay.ErrClientGone):
		logger.Info("client disconnected mid-stream", "err", err)
	case errors.As(err, &uerr) && uerr.Phase == relay.BeforeStream:
		logger.Error("error in chat endpoint", "err", uerr.Err)
	case errors.As(err, &uerr):
		logger.Error("streaming error", "err", uerr.Err)
	default:
		logger.Error("chat relay failed", "err", err)
	}
}

// sseSink commits an event-stream response on Begin and flushes every frame.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
	sw *sse.Writer
}

func newSSESink(w http.ResponseWriter) *sseSink {
	rc := http.NewResponseController(w)
	return &sseSink{w: w, rc: rc, sw: sse.NewWriter(w, rc.Flush)}
}

func (s *sseSink) Begin() error {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.rc.Flush()
}

func (s *sseSink) WriteFrame(f sse.Frame) error {
	return s.sw.WriteFrame(f)
}
