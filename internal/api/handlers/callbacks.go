// Package handlers contains the HTTP handlers of the callback API: one
// endpoint per case-event phase, plus the notification ingress.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/core"
	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// CallbackDispatcher runs the registered handlers for one callback.
type CallbackDispatcher interface {
	Dispatch(ctx context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error)
}

// NotificationEnqueuer hands a notification callback to the worker queue.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, cb types.Callback, traceID string) (types.NotificationMessage, error)
}

// CallbackHandler serves the case platform's phase callbacks.
type CallbackHandler struct {
	dispatcher   CallbackDispatcher
	enqueuer     NotificationEnqueuer
	validator    *core.Validator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewCallbackHandler wires a CallbackHandler. enqueuer may be nil, in which
// case /send is not mounted.
func NewCallbackHandler(d CallbackDispatcher, enqueuer NotificationEnqueuer, v *core.Validator, l *slog.Logger, maxBodyBytes int64) *CallbackHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator()
	}
	return &CallbackHandler{
		dispatcher:   d,
		enqueuer:     enqueuer,
		validator:    v,
		logger:       l,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the callback endpoints.
func (h *CallbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ccdAboutToStart", h.phase(types.PhaseAboutToStart))
	r.Post("/ccdMidEvent", h.phase(types.PhaseMidEvent))
	r.Post("/ccdAboutToSubmit", h.phase(types.PhaseAboutToSubmit))
	r.Post("/ccdSubmittedEvent", h.phase(types.PhaseSubmitted))
	if h.enqueuer != nil {
		r.Post("/send", h.Send)
	}
}

// phase returns the handler for one lifecycle phase. Business validation
// failures are reported in the 200 body; only malformed requests and
// contract violations produce error statuses.
func (h *CallbackHandler) phase(phase types.Phase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cb, ok := h.decode(w, r)
		if !ok {
			return
		}
		if cb.PageID == "" && phase == types.PhaseMidEvent {
			cb.PageID = r.URL.Query().Get("pageId")
		}

		res, err := h.dispatcher.Dispatch(r.Context(), phase, cb)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "callback dispatch failed",
				"phase", phase,
				"event_type", cb.EventType,
				"case_id", cb.CaseID(),
				"error", err,
			)
			core.Error(w, r, err)
			return
		}

		if res.Blocking(cb.IgnoreWarnings) {
			h.logger.InfoContext(r.Context(), "callback rejected by validation",
				"phase", phase,
				"event_type", cb.EventType,
				"case_id", cb.CaseID(),
				"errors", len(res.Errors),
				"warnings", len(res.Warnings),
			)
		}
		core.JSON(w, r, http.StatusOK, res)
	}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	TraceID   string `json:"trace_id"`
}

// Send handles POST /send: the callback is queued for the notification
// worker and acknowledged with 202.
func (h *CallbackHandler) Send(w http.ResponseWriter, r *http.Request) {
	cb, ok := h.decode(w, r)
	if !ok {
		return
	}

	msg, err := h.enqueuer.Enqueue(r.Context(), *cb, types.GetRequestID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to enqueue notification",
			"event_type", cb.EventType,
			"case_id", cb.CaseID(),
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalQueue, "notification could not be queued", err))
		return
	}

	h.logger.InfoContext(r.Context(), "notification queued",
		"message_id", msg.MessageID,
		"event_type", cb.EventType,
		"case_id", cb.CaseID(),
	)
	core.JSON(w, r, http.StatusAccepted, sendResponse{MessageID: msg.MessageID, TraceID: msg.TraceID})
}

func (h *CallbackHandler) decode(w http.ResponseWriter, r *http.Request) (*types.Callback, bool) {
	var cb types.Callback
	if err := core.DecodeJSON(w, r, &cb, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	if err := h.validator.Struct(&cb); err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	if cb.CaseDetails.Data == nil {
		cb.CaseDetails.Data = types.CaseData{}
	}
	return &cb, true
}
