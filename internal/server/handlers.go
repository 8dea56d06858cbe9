package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"typerace/internal/game"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode error: %v\n", err)
	}
}

// writeError maps domain errors onto the REST contract: validation and
// business-rule violations are 400, absent entities are 404, ownership
// is 403, anything else is logged and reported generically.
func writeError(w http.ResponseWriter, err error) {
	var ve *game.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid input: " + ve.Error()})
	case errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrParticipantNotFound),
		errors.Is(err, game.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
	case errors.Is(err, game.ErrRoomNotJoinable),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrRoomAlreadyStarted),
		errors.Is(err, game.ErrParticipantFinished):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, game.ErrNotRoomOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": err.Error()})
	default:
		log.Printf("[HTTP] internal error: %v\n", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.Game.GetUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:CreateRoom] Request Received")

	var in game.CreateRoomInput
	if !decodeBody(w, r, &in) {
		return
	}
	room, err := s.Game.CreateRoom(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[Handle:CreateRoom] Created room %s\n", room.Code)
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:JoinRoom] Request Received")

	var in struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))

	room, participant, err := s.Game.JoinRoom(r.Context(), userID(r), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":        room,
		"participant": participant,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "room"))
	room, err := s.Game.GetRoomByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:StartRoom] Request Received")

	room, err := s.Game.StartRoom(r.Context(), userID(r), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleRoomParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.Game.RoomParticipants(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Participant ID is required"})
		return
	}

	var snap game.ProgressSnapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	if err := s.Game.UpdateProgress(r.Context(), participantID, snap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:Finish] Request Received")

	var in struct {
		ParticipantID string  `json:"participantId"`
		FinalWpm      int     `json:"finalWpm"`
		FinalAccuracy float64 `json:"finalAccuracy"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.ParticipantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Participant ID is required"})
		return
	}

	placement, err := s.Game.FinishGame(r.Context(), in.ParticipantID, in.FinalWpm, in.FinalAccuracy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"placement": placement})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := s.Game.Leaderboard(r.Context(), s.limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	results, err := s.Game.UserHistory(r.Context(), userID(r), s.limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return s.DefaultLimit
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
