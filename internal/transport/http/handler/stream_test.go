package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/fanout"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFanout(t *testing.T) *fanout.Router {
	t.Helper()
	r, err := fanout.New(fanout.Options{QueueCapacity: 16, SendTimeout: 100 * time.Millisecond, EvictUnresponsive: true})
	require.NoError(t, err)
	go func() { _ = r.Run(context.Background()) }()
	t.Cleanup(func() {
		r.Close()
		<-r.Done()
	})
	return r
}

// streamServer serves the stream handler with identity taken from the
// ?as= query parameter in place of a session token.
func streamServer(t *testing.T, r *fanout.Router) string {
	t.Helper()
	h := NewStreamHandler(r, 8, []string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		withClaims(req.URL.Query().Get("as"), h.Stream).ServeHTTP(w, req)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, identity string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?as="+identity, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func publish(t *testing.T, r *fanout.Router, to, payload string) domain.DeliveryOutcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := r.Publish(ctx, domain.Identity(to), domain.Message{ID: payload, To: domain.Identity(to), Payload: payload})
	require.NoError(t, err)
	return out
}

func TestStream_RelaysMessagesInOrder(t *testing.T) {
	r := startFanout(t)
	conn := dial(t, streamServer(t, r), "bob@example.com")

	for _, p := range []string{"one", "two", "three"} {
		assert.Equal(t, domain.Delivered, publish(t, r, "bob@example.com", p))
	}
	for _, want := range []string{"one", "two", "three"} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got domain.Message
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, want, got.Payload)
	}
}

func TestStream_ClientDisconnectReleasesSubscription(t *testing.T) {
	r := startFanout(t)
	conn := dial(t, streamServer(t, r), "bob@example.com")
	require.Eventually(t, func() bool { return r.Live() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		out, err := r.Publish(context.Background(), "bob@example.com", domain.Message{ID: "ping"})
		return err == nil && out == domain.NoSubscriber
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, r.Live())
}

func TestStream_ReplacedConnectionIsClosed(t *testing.T) {
	r := startFanout(t)
	base := streamServer(t, r)
	first := dial(t, base, "bob@example.com")
	second := dial(t, base, "bob@example.com")

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.Equal(t, domain.Delivered, publish(t, r, "bob@example.com", "latest"))
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Message
	require.NoError(t, second.ReadJSON(&got))
	assert.Equal(t, "latest", got.Payload)
}

func TestStream_RouterShutdownClosesStream(t *testing.T) {
	r := startFanout(t)
	conn := dial(t, streamServer(t, r), "bob@example.com")

	r.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestStream_RouterClosedBeforeUpgrade(t *testing.T) {
	r := startFanout(t)
	base := streamServer(t, r)
	r.Close()
	<-r.Done()

	_, resp, err := websocket.DefaultDialer.Dial(base+"?as=bob@example.com", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))
}
