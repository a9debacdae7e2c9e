package notify

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialChannel(t *testing.T, srv *httptest.Server, channel string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "?channel=" + channel
	return websocket.DefaultDialer.Dial(target, header)
}

func TestHubDeliversOnlyToSubscribedChannel(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

	srv := httptest.NewServer(hub)
	defer srv.Close()

	alice, _, err := dialChannel(t, srv, "view-a", nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dialChannel(t, srv, "view-b", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Channel("view-a").Notify("Audio Error", "quota exceeded", LevelError)
	hub.Publish("view-b", TopicProgress, map[string]int{"percent": 40})

	var frame struct {
		Topic   string       `json:"topic"`
		Payload Notification `json:"payload"`
	}
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, alice.ReadJSON(&frame))
	require.Equal(t, TopicNotification, frame.Topic)
	require.Equal(t, "quota exceeded", frame.Payload.Message)
	require.Equal(t, LevelError, frame.Payload.Level)

	// bob's first frame is his own progress, not alice's notification
	var progress struct {
		Topic   string         `json:"topic"`
		Payload map[string]int `json:"payload"`
	}
	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, bob.ReadJSON(&progress))
	require.Equal(t, TopicProgress, progress.Topic)
	require.Equal(t, 40, progress.Payload["percent"])

	_ = alice.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	require.Error(t, alice.ReadJSON(&frame))

	hub.Close()
	require.Zero(t, hub.Clients())
}

func TestHubRequiresChannel(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := dialChannel(t, srv, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, hub.Clients())
}

func TestHubRejectsCrossOrigin(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := dialChannel(t, srv, "view-a", http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dialChannel(t, srv, "view-a", http.Header{"Origin": {srv.URL}})
	require.NoError(t, err)
	conn.Close()
}

func TestLoggerNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	n.Notify("Script Error", "blocked", LevelWarning)
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "title=\"Script Error\"")

	var count int
	Multi{counter(&count), nil, counter(&count)}.Notify("t", "m", LevelInfo)
	require.Equal(t, 2, count)
}

type countingNotifier func()

func (f countingNotifier) Notify(string, string, Level) { f() }

func counter(n *int) countingNotifier {
	return func() { *n++ }
}
