package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/pkg/id"
	"github.com/go-fanout-relay/internal/pkg/validate"
	"github.com/go-fanout-relay/internal/transport/http/middleware"
)

// Publisher routes a message to the live subscriber of an identity.
type Publisher interface {
	Publish(ctx context.Context, identity domain.Identity, msg domain.Message) (domain.DeliveryOutcome, error)
}

// MessageHandler accepts messages from authenticated senders.
type MessageHandler struct {
	router Publisher
}

func NewMessageHandler(router Publisher) *MessageHandler {
	return &MessageHandler{router: router}
}

type sendRequest struct {
	To      string `json:"to" validate:"required"`
	Payload string `json:"payload" validate:"required"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sendRequest
	if !decodeJSON(w, r, maxMessageBody, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := domain.Message{
		ID:      id.New(),
		From:    claims.Identity(),
		To:      domain.CanonicalIdentity(req.To),
		Payload: req.Payload,
		SentAt:  time.Now().UTC(),
	}
	outcome, err := h.router.Publish(r.Context(), msg.To, msg)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(outcome), OutcomeEnvelope{ID: msg.ID, Outcome: outcome.String()})
}

func outcomeStatus(o domain.DeliveryOutcome) int {
	switch o {
	case domain.Delivered:
		return http.StatusOK
	case domain.NoSubscriber:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}
