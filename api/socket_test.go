package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialSocket(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one named event matches, returning it
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event == event && (match == nil || match(frame.Data)) {
			return frame.Data
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

type queuePayload struct {
	Queue []struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Status string `json:"status"`
	} `json:"queue"`
	Draining bool `json:"draining"`
}

func queueLen(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var q queuePayload
		return json.Unmarshal(raw, &q) == nil && len(q.Queue) == n
	}
}

func TestSocket_ConnectedThenSnapshot(t *testing.T) {
	env := setupTestServer(t)
	conn := dialSocket(t, env)

	var first wsFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "connected", first.Event)
	assert.JSONEq(t, `{"status":"ready"}`, string(first.Data))

	var second wsFrame
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "queue_updated", second.Event)
	assert.JSONEq(t, `{"queue":[],"draining":false}`, string(second.Data))
}

func TestSocket_AddRemoveClear(t *testing.T) {
	env := setupTestServer(t)
	conn := dialSocket(t, env)
	readUntil(t, conn, "queue_updated", nil)

	send(t, conn, "add_to_queue", map[string]any{
		"urls":   []string{"https://a.example/1", "https://a.example/2"},
		"format": "mp3",
	})
	raw := readUntil(t, conn, "queue_updated", queueLen(2))

	var q queuePayload
	require.NoError(t, json.Unmarshal(raw, &q))
	assert.Equal(t, "https://a.example/1", q.Queue[0].URL)
	assert.Equal(t, "pending", q.Queue[0].Status)

	send(t, conn, "remove_from_queue", map[string]any{"id": q.Queue[0].ID})
	readUntil(t, conn, "queue_updated", queueLen(1))

	send(t, conn, "clear_queue", nil)
	readUntil(t, conn, "queue_updated", queueLen(0))
}

func TestSocket_InvalidRequestsAnswerWithError(t *testing.T) {
	env := setupTestServer(t)
	conn := dialSocket(t, env)
	readUntil(t, conn, "queue_updated", nil)

	send(t, conn, "add_to_queue", map[string]any{"urls": []string{"ftp://b.example"}})
	raw := readUntil(t, conn, "error", nil)
	assert.Contains(t, string(raw), "rejected ftp://b.example")
	raw = readUntil(t, conn, "error", nil)
	assert.Contains(t, string(raw), "no valid URLs provided")

	send(t, conn, "cancel_download", map[string]any{"id": "missing"})
	raw = readUntil(t, conn, "error", nil)
	assert.Contains(t, string(raw), `"id":"missing"`)

	send(t, conn, "bogus", nil)
	raw = readUntil(t, conn, "error", nil)
	assert.Contains(t, string(raw), "unknown event")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	raw = readUntil(t, conn, "error", nil)
	assert.Contains(t, string(raw), "invalid message")
}

func TestSocket_AddReportsRejectedURLs(t *testing.T) {
	env := setupTestServer(t)
	conn := dialSocket(t, env)
	readUntil(t, conn, "queue_updated", nil)

	send(t, conn, "add_to_queue", map[string]any{"urls": []string{"https://a.example/1", "ftp://b.example"}})
	raw := readUntil(t, conn, "error", nil)

	var payload struct {
		Msg string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Contains(t, payload.Msg, "ftp://b.example")
	assert.Equal(t, 1, len(env.orch.Snapshot().Jobs))
}

func TestSocket_DrainStreamsLifecycle(t *testing.T) {
	env := setupTestServer(t)
	conn := dialSocket(t, env)
	readUntil(t, conn, "queue_updated", nil)

	send(t, conn, "add_to_queue", map[string]any{"urls": []string{"https://a.example/1"}, "format": "mp3"})
	readUntil(t, conn, "queue_updated", queueLen(1))

	send(t, conn, "start_queue_download", nil)

	started := readUntil(t, conn, "download_started", nil)
	assert.Contains(t, string(started), "https://a.example/1")

	readUntil(t, conn, "info", func(raw json.RawMessage) bool {
		return strings.Contains(string(raw), "clip 1")
	})

	done := readUntil(t, conn, "done", nil)
	assert.Contains(t, string(done), `"percent":"100%"`)

	completed := readUntil(t, conn, "item_completed", nil)
	assert.Contains(t, string(completed), `"success":true`)

	readUntil(t, conn, "all_downloads_complete", nil)
}

func TestSocket_VideoInfo(t *testing.T) {
	env := setupTestServer(t)
	env.fetcher.fail("https://a.example/private", errors.New("ERROR: Private video"))
	conn := dialSocket(t, env)
	readUntil(t, conn, "queue_updated", nil)

	send(t, conn, "get_video_info", map[string]any{"url": "https://a.example/ok", "index": 3})
	raw := readUntil(t, conn, "video_info", nil)

	var info struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Index int    `json:"index"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, "clip ok", info.Title)
	assert.Equal(t, "https://a.example/ok", info.URL)
	assert.Equal(t, 3, info.Index)
	assert.Empty(t, info.Error)

	send(t, conn, "get_video_info", map[string]any{"url": "https://a.example/private", "index": 4})
	raw = readUntil(t, conn, "video_info", nil)
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, 4, info.Index)
	assert.NotEmpty(t, info.Error)
}
