package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperr "github.com/frameparty/frameparty/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for room operations.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for room endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "room_http").Logger(),
	}
}

// CreateRoom handles POST /v1/rooms
func (h *HTTPHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	snap, host, token, err := h.service.CreateRoom(r.Context(), req.HostName)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"room":       snap,
		"player":     host,
		"host_token": token,
	})
}

// GetRoom handles GET /v1/rooms/{code}
func (h *HTTPHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetRoom(r.Context(), roomCode(r))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": snap})
}

// JoinRoom handles POST /v1/rooms/{code}/join
func (h *HTTPHandlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	snap, player, err := h.service.JoinRoom(r.Context(), roomCode(r), req.PlayerName)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"room":   snap,
		"player": player,
	})
}

// LeaveRoom handles POST /v1/rooms/{code}/leave
func (h *HTTPHandlers) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "player_id must be a UUID")
		return
	}

	if err := h.service.LeaveRoom(r.Context(), roomCode(r), playerID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"left": true})
}

// AssembleFrames handles POST /v1/rooms/{code}/frames
func (h *HTTPHandlers) AssembleFrames(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httperr.RespondUnauthorized(w, httperr.ErrCodeUnauthorized, "Host token required")
		return
	}

	var req struct {
		GenreID int `json:"genre_id"`
		Year    int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	snap, err := h.service.AssembleFrames(r.Context(), roomCode(r), token, req.GenreID, req.Year)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": snap})
}

// StartMatch handles POST /v1/rooms/{code}/start
func (h *HTTPHandlers) StartMatch(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.StartMatch)
}

// AdvanceFrame handles POST /v1/rooms/{code}/advance
func (h *HTTPHandlers) AdvanceFrame(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.AdvanceFrame)
}

// CompleteMatch handles POST /v1/rooms/{code}/complete
func (h *HTTPHandlers) CompleteMatch(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, h.service.CompleteMatch)
}

// ResetToLobby handles POST /v1/rooms/{code}/reset
func (h *HTTPHandlers) ResetToLobby(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httperr.RespondUnauthorized(w, httperr.ErrCodeUnauthorized, "Host token required")
		return
	}

	var req struct {
		ClearScores bool `json:"clear_scores"`
	}
	// An absent or empty body means keep scores.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	snap, err := h.service.ResetToLobby(r.Context(), roomCode(r), token, req.ClearScores)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": snap})
}

// UpdateSettings handles POST /v1/rooms/{code}/settings
func (h *HTTPHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httperr.RespondUnauthorized(w, httperr.ErrCodeUnauthorized, "Host token required")
		return
	}

	var req struct {
		Difficulty      string `json:"difficulty"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	snap, err := h.service.UpdateSettings(r.Context(), roomCode(r), token, Difficulty(req.Difficulty), req.DurationMinutes)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": snap})
}

// SubmitGuess handles POST /v1/rooms/{code}/guess
func (h *HTTPHandlers) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Answer   string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "player_id must be a UUID")
		return
	}

	snap, outcome, err := h.service.SubmitGuess(r.Context(), roomCode(r), playerID, req.Answer)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"room":    snap,
		"outcome": outcome,
	})
}

// Heartbeat handles POST /v1/rooms/{code}/heartbeat
func (h *HTTPHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "player_id must be a UUID")
		return
	}

	if err := h.service.Heartbeat(r.Context(), roomCode(r), playerID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// hostAction covers the host endpoints that take no body beyond the token.
func (h *HTTPHandlers) hostAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, code, token string) (*Snapshot, error)) {
	token, ok := bearerToken(r)
	if !ok {
		httperr.RespondUnauthorized(w, httperr.ErrCodeUnauthorized, "Host token required")
		return
	}

	snap, err := fn(r.Context(), roomCode(r), token)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"room": snap})
}

func roomCode(r *http.Request) string {
	return strings.ToUpper(r.PathValue("code"))
}

// bearerToken extracts the host credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondDomainError translates service sentinels into wire error codes.
// Whether the caller is the host is never revealed on authorization
// failure, so unknown tokens and guest tokens get the same answer.
func (h *HTTPHandlers) respondDomainError(w http.ResponseWriter, err error) {
	respondDomainError(w, err, h.logger)
}

func respondDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		httperr.RespondNotFound(w, httperr.ErrCodeRoomNotFound, "Room not found")
	case errors.Is(err, ErrPlayerNotFound):
		httperr.RespondNotFound(w, httperr.ErrCodePlayerNotFound, "Player not found")
	case errors.Is(err, ErrInvalidCode):
		httperr.RespondBadRequest(w, httperr.ErrCodeInvalidRoomCode, "Room code must be 6 characters")
	case errors.Is(err, ErrInvalidName):
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "Name must not be empty")
	case errors.Is(err, ErrInvalidSettings):
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "Invalid difficulty or duration")
	case errors.Is(err, ErrEmptyAnswer):
		httperr.RespondBadRequest(w, httperr.ErrCodeValidationFailed, "Answer must not be empty")
	case errors.Is(err, ErrUnauthorized):
		httperr.RespondUnauthorized(w, httperr.ErrCodeUnauthorized, "Not authorized for this room")
	case errors.Is(err, ErrRoomNotJoinable):
		httperr.RespondConflict(w, httperr.ErrCodeRoomNotJoinable, "Room is not in the lobby")
	case errors.Is(err, ErrRoomFull):
		httperr.RespondConflict(w, httperr.ErrCodeRoomFull, "Room is full")
	case errors.Is(err, ErrRoundNotActive):
		httperr.RespondConflict(w, httperr.ErrCodeRoundNotActive, "No active round")
	case errors.Is(err, ErrFrameNotRevealed):
		httperr.RespondConflict(w, httperr.ErrCodeFrameNotRevealed, "Frame is not revealed yet")
	case errors.Is(err, ErrGuessWindowClosed):
		httperr.RespondConflict(w, httperr.ErrCodeGuessWindowClosed, "Guess window has closed")
	case errors.Is(err, ErrFramesRequired):
		httperr.RespondConflict(w, httperr.ErrCodeFramesRequired, "Assemble frames before starting")
	case errors.Is(err, ErrNoFrames):
		httperr.RespondConflict(w, httperr.ErrCodeNoFrames, "Room has no frames")
	case errors.Is(err, ErrNoEligibleContent):
		httperr.RespondConflict(w, httperr.ErrCodeNoEligibleContent, "No eligible titles for these filters")
	case errors.Is(err, ErrConflict):
		httperr.RespondRetryable(w, http.StatusConflict, httperr.ErrCodeConflict, "Concurrent update, retry the request")
	default:
		logger.Error().Err(err).Msg("unhandled service error")
		httperr.RespondInternalError(w, "Internal server error")
	}
}
