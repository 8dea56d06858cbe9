package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	// Public
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/leaderboard", s.handleLeaderboard)

	// Session required
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/auth/user", s.handleAuthUser)
		r.Post("/api/rooms", s.handleCreateRoom)
		r.Post("/api/rooms/join", s.handleJoinRoom)
		// {room} is the shareable code on the bare GET and the room id
		// on the nested routes, matching the client's usage.
		r.Get("/api/rooms/{room}", s.handleGetRoom)
		r.Get("/api/rooms/{room}/participants", s.handleRoomParticipants)
		r.Post("/api/rooms/{room}/start", s.handleStartRoom)
		r.Post("/api/game/progress", s.handleProgress)
		r.Post("/api/game/finish", s.handleFinish)
		r.Get("/api/user/history", s.handleHistory)
	})

	return r
}
