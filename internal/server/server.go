package server

import (
	"fmt"
	"log"
	"net/http"

	"typerace/internal/config"
	"typerace/internal/db"
	"typerace/internal/game"
	"typerace/internal/memstore"
)

type Server struct {
	Game         *game.Service
	DB           *db.DB // nil when running on the in-memory store
	Secret       []byte // HS256 key shared with the identity provider
	DefaultLimit int
}

func Run() error {
	cfg := config.Load()
	if cfg.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set")
	}

	srv := &Server{
		Secret:       []byte(cfg.SessionSecret),
		DefaultLimit: cfg.LeaderboardLimit,
	}

	var store game.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		srv.DB = database
		store = database
	} else {
		log.Println("[DB] DATABASE_URL not set, using in-memory store")
		store = memstore.New()
	}
	srv.Game = game.NewService(store)

	addr := "0.0.0.0:" + cfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", cfg.Port)
	return http.ListenAndServe(addr, srv.Routes())
}
