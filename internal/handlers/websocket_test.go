package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/handlers"
	httpx "github.com/AidoTokihisa11/visiconnect-sub001/internal/http"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/registry"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc := service.NewSessionService(registry.NewParticipantRegistry(), registry.NewRoomRegistry(0, 0))
	feed := handlers.NewStatusFeed(svc)
	svc.RegisterUpdateCallback(feed.NotifyRoomUpdate)

	router := httpx.NewRouter(handlers.NewRoomHandler(svc), handlers.NewWebSocketHandler(svc), feed, nil)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, name, roomID string) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?name=" + url.QueryEscape(name)
	if roomID != "" {
		u += "&roomId=" + url.QueryEscape(roomID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads the next event, failing the test on timeout.
func readEvent(t *testing.T, conn *websocket.Conn) handlers.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var evt handlers.Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

// expectEvent reads the next event and asserts its type, returning the
// decoded payload.
func expectEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()

	evt := readEvent(t, conn)
	require.Equal(t, eventType, evt.Type, "unexpected event (payload: %s)", evt.Payload)
	if evt.Payload == nil {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return nil // list payloads; caller decodes those itself
	}
	return payload
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()

	evt := handlers.Event{Type: eventType}
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		evt.Payload = b
	}
	require.NoError(t, conn.WriteJSON(evt))
}

func TestHandshake_RejectedWithoutName(t *testing.T) {
	ts := newTestServer(t)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScenario_CreateJoinChat(t *testing.T) {
	ts := newTestServer(t)

	// A connects and creates a room.
	alice := dial(t, ts, "Alice", "")
	connected := expectEvent(t, alice, "connected")
	aliceID := connected["participantId"].(string)

	sendEvent(t, alice, "create-room", map[string]any{"roomName": "standup"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	assert.Equal(t, "standup", created["roomName"])
	assert.Equal(t, true, created["isHost"])
	expectEvent(t, alice, "users-list")

	// B joins with a rename; A sees the join.
	bob := dial(t, ts, "anonymous", "")
	expectEvent(t, bob, "connected")
	sendEvent(t, bob, "join-room", map[string]any{"roomId": roomID, "userName": "Bob"})

	joinNotice := expectEvent(t, alice, "user-joined")
	assert.Equal(t, "Bob", joinNotice["userName"])

	joined := expectEvent(t, bob, "room-joined")
	assert.Equal(t, roomID, joined["roomId"])
	assert.Equal(t, false, joined["isHost"])

	evt := readEvent(t, bob)
	require.Equal(t, "users-list", evt.Type)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &users))
	assert.Len(t, users, 2)

	evt = readEvent(t, bob)
	require.Equal(t, "message-history", evt.Type)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &history))
	assert.Empty(t, history)
	expectEvent(t, bob, "whiteboard-history")

	// A chats; only B receives the broadcast, attributed to A.
	sendEvent(t, alice, "send-message", map[string]any{"content": "hello"})
	msg := expectEvent(t, bob, "message")
	assert.Equal(t, "hello", msg["content"])
	assert.Equal(t, aliceID, msg["senderId"])
	assert.Equal(t, "Alice", msg["senderName"])

	// The appended message replays to a late joiner.
	carol := dial(t, ts, "Carol", roomID)
	expectEvent(t, carol, "connected")
	expectEvent(t, carol, "room-joined")
	expectEvent(t, carol, "users-list")
	evt = readEvent(t, carol)
	require.Equal(t, "message-history", evt.Type)
	require.NoError(t, json.Unmarshal(evt.Payload, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0]["content"])
}

func TestScenario_SignalingRelay(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	connected := expectEvent(t, alice, "connected")
	aliceID := connected["participantId"].(string)
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "call"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	bob := dial(t, ts, "Bob", roomID)
	expectEvent(t, bob, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "room-joined")
	expectEvent(t, bob, "users-list")
	expectEvent(t, bob, "message-history")
	expectEvent(t, bob, "whiteboard-history")

	// The SDP blob is relayed opaquely, tagged with the sender.
	sendEvent(t, alice, "offer", map[string]any{"sdp": "v=0 fake-offer"})
	offer := expectEvent(t, bob, "offer")
	assert.Equal(t, aliceID, offer["from"])
	inner := offer["payload"].(map[string]any)
	assert.Equal(t, "v=0 fake-offer", inner["sdp"])
}

func TestScenario_StraySignalingIsSilentlyDropped(t *testing.T) {
	ts := newTestServer(t)

	carol := dial(t, ts, "Carol", "")
	expectEvent(t, carol, "connected")

	// Not in any room: no broadcast, no error, connection stays usable.
	sendEvent(t, carol, "offer", map[string]any{"sdp": "stray"})
	sendEvent(t, carol, "ping", nil)
	expectEvent(t, carol, "pong")
}

func TestScenario_ForbiddenRecording(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	expectEvent(t, alice, "connected")
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "standup"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	bob := dial(t, ts, "Bob", roomID)
	expectEvent(t, bob, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "room-joined")
	expectEvent(t, bob, "users-list")
	expectEvent(t, bob, "message-history")
	expectEvent(t, bob, "whiteboard-history")

	// Non-host attempt: error for Bob, nothing changes for the room.
	sendEvent(t, bob, "start-recording", nil)
	errEvt := expectEvent(t, bob, "error")
	assert.Contains(t, errEvt["message"], "host")

	resp, err := http.Get(ts.URL + "/api/v1/rooms/" + roomID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var detail struct {
		Room struct {
			IsRecording bool `json:"isRecording"`
		} `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.False(t, detail.Room.IsRecording)

	// Host attempt: both sides hear about it. Alice was not notified of
	// Bob's failed attempt, so her next event is her own ack.
	sendEvent(t, alice, "start-recording", nil)
	expectEvent(t, alice, "recording-started")
	expectEvent(t, bob, "recording-started")
}

func TestScenario_MediaToggleBroadcast(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	expectEvent(t, alice, "connected")
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "standup"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	bob := dial(t, ts, "Bob", roomID)
	expectEvent(t, bob, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "room-joined")
	expectEvent(t, bob, "users-list")
	expectEvent(t, bob, "message-history")
	expectEvent(t, bob, "whiteboard-history")

	require.NoError(t, alice.WriteJSON(handlers.Event{Type: "toggle-audio", Payload: json.RawMessage("true")}))
	changed := expectEvent(t, bob, "media-state-changed")
	media := changed["media"].(map[string]any)
	assert.Equal(t, true, media["audioEnabled"])

	sendEvent(t, alice, "screen-share-start", nil)
	share := expectEvent(t, bob, "screen-share-started")
	assert.Equal(t, "Alice", share["userName"])
}

func TestScenario_DisconnectCleansUpRoom(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	expectEvent(t, alice, "connected")
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "standup"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	require.NoError(t, alice.Close())

	// Disconnect processing is asynchronous; poll until the room is gone.
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/v1/rooms/" + roomID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, readTimeout, 10*time.Millisecond, "room must be gone once its last participant disconnects")
}

func TestScenario_StaleJoinHintReportsError(t *testing.T) {
	ts := newTestServer(t)

	conn := dial(t, ts, "Dana", "gone123")
	expectEvent(t, conn, "connected")
	errEvt := expectEvent(t, conn, "error")
	assert.Equal(t, "Room not found", errEvt["message"])

	// Still usable afterwards.
	sendEvent(t, conn, "create-room", map[string]any{"roomName": "fresh"})
	expectEvent(t, conn, "room-created")
}

func TestScenario_LeaveRoomAlwaysAcked(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	expectEvent(t, alice, "connected")

	// Idle participant: the ack still arrives so the client can settle.
	sendEvent(t, alice, "leave-room", nil)
	expectEvent(t, alice, "room-left")

	// In a room: ack for the leaver, notice for the rest.
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "standup"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	bob := dial(t, ts, "Bob", roomID)
	expectEvent(t, bob, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "room-joined")
	expectEvent(t, bob, "users-list")
	expectEvent(t, bob, "message-history")
	expectEvent(t, bob, "whiteboard-history")

	sendEvent(t, bob, "leave-room", nil)
	expectEvent(t, bob, "room-left")
	gone := expectEvent(t, alice, "user-left")
	assert.Equal(t, "Bob", gone["userName"])

	// A second leave from the now-idle sender is acked again.
	sendEvent(t, bob, "leave-room", nil)
	expectEvent(t, bob, "room-left")
}

func TestScenario_WhiteboardDrawAndClear(t *testing.T) {
	ts := newTestServer(t)

	alice := dial(t, ts, "Alice", "")
	connected := expectEvent(t, alice, "connected")
	aliceID := connected["participantId"].(string)
	sendEvent(t, alice, "create-room", map[string]any{"roomName": "sketch"})
	created := expectEvent(t, alice, "room-created")
	roomID := created["roomId"].(string)
	expectEvent(t, alice, "users-list")

	bob := dial(t, ts, "Bob", roomID)
	expectEvent(t, bob, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "room-joined")
	expectEvent(t, bob, "users-list")
	expectEvent(t, bob, "message-history")
	expectEvent(t, bob, "whiteboard-history")

	// A draws; only B receives the stroke, attributed to A, payload intact.
	sendEvent(t, alice, "whiteboard-draw", map[string]any{"tool": "pen", "points": []int{1, 2, 3}})
	draw := expectEvent(t, bob, "whiteboard-draw")
	assert.Equal(t, aliceID, draw["authorId"])
	inner := draw["payload"].(map[string]any)
	assert.Equal(t, "pen", inner["tool"])

	// The stroke replays to a late joiner.
	carol := dial(t, ts, "Carol", roomID)
	expectEvent(t, carol, "connected")
	expectEvent(t, alice, "user-joined")
	expectEvent(t, bob, "user-joined")
	expectEvent(t, carol, "room-joined")
	expectEvent(t, carol, "users-list")
	expectEvent(t, carol, "message-history")
	evt := readEvent(t, carol)
	require.Equal(t, "whiteboard-history", evt.Type)
	var board []map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &board))
	require.Len(t, board, 1)

	// B clears; the other members hear it and the history is reset.
	sendEvent(t, bob, "whiteboard-clear", nil)
	expectEvent(t, alice, "whiteboard-clear")
	expectEvent(t, carol, "whiteboard-clear")

	dana := dial(t, ts, "Dana", roomID)
	expectEvent(t, dana, "connected")
	expectEvent(t, dana, "room-joined")
	expectEvent(t, dana, "users-list")
	expectEvent(t, dana, "message-history")
	evt = readEvent(t, dana)
	require.Equal(t, "whiteboard-history", evt.Type)
	board = nil
	require.NoError(t, json.Unmarshal(evt.Payload, &board))
	assert.Empty(t, board)
}

func TestREST_StatsAndList(t *testing.T) {
	ts := newTestServer(t)

	conns := make([]*websocket.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		c := dial(t, ts, fmt.Sprintf("user-%d", i), "")
		expectEvent(t, c, "connected")
		conns = append(conns, c)
	}
	sendEvent(t, conns[0], "create-room", map[string]any{"roomName": "alpha"})
	expectEvent(t, conns[0], "room-created")

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats struct {
		Rooms        int `json:"rooms"`
		Participants int `json:"participants"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 3, stats.Participants)
}
