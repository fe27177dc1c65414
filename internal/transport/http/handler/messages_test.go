package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, identity domain.Identity, msg domain.Message) (domain.DeliveryOutcome, error) {
	args := m.Called(ctx, identity, msg)
	return args.Get(0).(domain.DeliveryOutcome), args.Error(1)
}

func sendAs(t *testing.T, h *MessageHandler, sender string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", jsonBody(t, body))
	rr := httptest.NewRecorder()
	withClaims(sender, h.Send).ServeHTTP(rr, req)
	return rr
}

func TestSend_Outcomes(t *testing.T) {
	tests := []struct {
		outcome domain.DeliveryOutcome
		want    int
	}{
		{domain.Delivered, http.StatusOK},
		{domain.NoSubscriber, http.StatusNotFound},
		{domain.SubscriberUnresponsive, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			pub := new(mockPublisher)
			pub.On("Publish", mock.Anything, domain.Identity("bob@example.com"), mock.Anything).Return(tt.outcome, nil)

			rr := sendAs(t, NewMessageHandler(pub), "alice@example.com", map[string]string{"to": "Bob@Example.com", "payload": "hi"})
			assert.Equal(t, tt.want, rr.Code)
			env := decode[OutcomeEnvelope](t, rr)
			assert.Equal(t, tt.outcome.String(), env.Outcome)
			assert.NotEmpty(t, env.ID)
		})
	}
}

func TestSend_SenderIsAuthenticatedIdentity(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, domain.Identity("bob@example.com"), mock.MatchedBy(func(m domain.Message) bool {
		return m.From == "alice@example.com" && m.To == "bob@example.com" && m.Payload == "hi" && !m.SentAt.IsZero()
	})).Return(domain.Delivered, nil)

	rr := sendAs(t, NewMessageHandler(pub), "alice@example.com",
		map[string]string{"to": "bob@example.com", "payload": "hi", "from": "mallory@example.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	pub.AssertExpectations(t)
}

func TestSend_RouterClosed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(domain.NoSubscriber, domain.ErrRouterClosed)

	rr := sendAs(t, NewMessageHandler(pub), "alice@example.com", map[string]string{"to": "bob@example.com", "payload": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSend_MissingFields(t *testing.T) {
	rr := sendAs(t, NewMessageHandler(new(mockPublisher)), "alice@example.com", map[string]string{"payload": "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSend_PayloadTooLarge(t *testing.T) {
	pub := new(mockPublisher)
	rr := sendAs(t, NewMessageHandler(pub), "alice@example.com",
		map[string]string{"to": "bob@example.com", "payload": strings.Repeat("x", maxMessageBody)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", jsonBody(t, map[string]string{"to": "b", "payload": "p"}))
	rr := httptest.NewRecorder()
	NewMessageHandler(new(mockPublisher)).Send(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
