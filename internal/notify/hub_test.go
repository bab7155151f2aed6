package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, userID string) (*Broker, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := NewBroker()
	hub := NewHub(b, []string{"http://localhost:4200"})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userId", userID)
		}
		c.Next()
	})
	hub.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hubs/documents"
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHubDeliversUserEvents(t *testing.T) {
	b, srv := newHubServer(t, "u1")
	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Count(GroupKey("u1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	NewPublisher(b).Publish("u1", Completed("doc-1", "scan.png", "hello", []string{"a"}, time.Now()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventCompleted, ev.Name)
	assert.Equal(t, "doc-1", ev.Data.DocumentID)
	assert.Equal(t, "hello", ev.Data.Summary)
	assert.Equal(t, []string{"a"}, ev.Data.Tags)
}

func TestHubLeaveAndJoin(t *testing.T) {
	b, srv := newHubServer(t, "u1")
	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	key := GroupKey("u1")

	require.Eventually(t, func() bool { return b.Count(key) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "leave"}))
	require.Eventually(t, func() bool { return b.Count(key) == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "join"}))
	require.Eventually(t, func() bool { return b.Count(key) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	b, srv := newHubServer(t, "u1")
	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.Count(GroupKey("u1")) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return b.Count(GroupKey("u1")) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsAnonymous(t *testing.T) {
	_, srv := newHubServer(t, "")
	_, resp, err := dial(t, srv, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, srv := newHubServer(t, "u1")
	_, resp, err := dial(t, srv, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWSConnSendIsNonBlocking(t *testing.T) {
	c := &wsConn{id: "x", send: make(chan Event, 1), done: make(chan struct{})}
	require.NoError(t, c.Send(Started("d", "f", time.Now())))
	assert.ErrorIs(t, c.Send(Started("d", "f", time.Now())), ErrSlowSubscriber)

	close(c.done)
	assert.Error(t, c.Send(Started("d", "f", time.Now())))
}
