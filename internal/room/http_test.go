package room_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameparty/frameparty/internal/room"
)

func postJSON(t *testing.T, handler http.HandlerFunc, code, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/rooms", strings.NewReader(body))
	if code != "" {
		req.SetPathValue("code", code)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHTTPCreateAndJoin(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	h := room.NewHTTPHandlers(svc, zerolog.Nop())

	rec := postJSON(t, h.CreateRoom, "", "", `{"host_name":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(body["room"], &snap))
	var token string
	require.NoError(t, json.Unmarshal(body["host_token"], &token))
	assert.NotEmpty(t, token)
	assert.Equal(t, room.StatusLobby, snap.Room.Status)

	rec = postJSON(t, h.JoinRoom, snap.Room.Code, "", `{"player_name":"bob"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Codes are case-insensitive on the wire.
	rec = postJSON(t, h.JoinRoom, strings.ToLower(snap.Room.Code), "", `{"player_name":"carol"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHTTPErrorMapping(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	h := room.NewHTTPHandlers(svc, zerolog.Nop())

	rec := postJSON(t, h.CreateRoom, "", "", `{"host_name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", errorCode(t, rec))

	rec = postJSON(t, h.CreateRoom, "", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))

	rec = postJSON(t, h.JoinRoom, "ZZZZZ9", "", `{"player_name":"bob"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "room_not_found", errorCode(t, rec))

	rec = postJSON(t, h.JoinRoom, "bad!!", "", `{"player_name":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_room_code", errorCode(t, rec))
}

func TestHTTPHostGuard(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	h := room.NewHTTPHandlers(svc, zerolog.Nop())

	snap, _, _, err := svc.CreateRoom(context.Background(), "alice")
	require.NoError(t, err)
	code := snap.Room.Code

	rec := postJSON(t, h.StartMatch, code, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = postJSON(t, h.StartMatch, code, "bogus-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))
}

func TestHTTPStartWithoutFrames(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	h := room.NewHTTPHandlers(svc, zerolog.Nop())

	snap, _, token, err := svc.CreateRoom(context.Background(), "alice")
	require.NoError(t, err)

	rec := postJSON(t, h.StartMatch, snap.Room.Code, token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "frames_required", errorCode(t, rec))
}

func TestHTTPGuessFlow(t *testing.T) {
	assembler := &stubAssembler{frames: testFrames("Alien")}
	svc, _, clock := newTestService(t, assembler)
	h := room.NewHTTPHandlers(svc, zerolog.Nop())
	ctx := context.Background()

	snap, host, token, err := svc.CreateRoom(ctx, "alice")
	require.NoError(t, err)
	code := snap.Room.Code

	_, err = svc.AssembleFrames(ctx, code, token, 0, 0)
	require.NoError(t, err)
	_, err = svc.StartMatch(ctx, code, token)
	require.NoError(t, err)
	clock.Advance(6 * time.Second)

	rec := postJSON(t, h.SubmitGuess, code, "", `{"player_id":"`+host.ID.String()+`","answer":"alien"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	var outcome room.Outcome
	require.NoError(t, json.Unmarshal(body["outcome"], &outcome))
	assert.Equal(t, room.OutcomeCorrect, outcome)

	rec = postJSON(t, h.SubmitGuess, code, "", `{"player_id":"not-a-uuid","answer":"alien"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", errorCode(t, rec))
}
