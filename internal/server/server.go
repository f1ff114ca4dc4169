// Package server wires the application together: configuration,
// database, message bus, game engine, WebSocket bridge, and the echo
// HTTP server in front of them.
package server

import (
	"context"
	"fmt"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"
	"github.com/surrealdb/surrealdb.go"

	"dicelink/internal/config"
	"dicelink/internal/database"
	"dicelink/internal/domain"
	"dicelink/internal/game"
	"dicelink/internal/hub"
	"dicelink/internal/logging"
	"dicelink/internal/middleware"
	"dicelink/internal/pubsub"
	"dicelink/internal/rules"
	"dicelink/internal/storage"
	"dicelink/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	DB     *surrealdb.DB
	Cfg    *config.Config
	Hub    *hub.Hub
	Broker *pubsub.Broker
	Engine *game.Engine
	Rules  *rules.Engine

	games   domain.GameRepository
	players domain.PlayerRepository
}

// New creates a fully wired Server backed by SurrealDB.
func New() (*Server, error) {
	logging.New()

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := newServer(cfg,
		database.NewSurrealGameStore(db),
		database.NewSurrealPlayerStore(db),
	)
	s.DB = db
	return s, nil
}

// newServer assembles the server around the given stores. Tests call it
// directly with in-memory repositories and extra bridge options.
func newServer(cfg *config.Config, games domain.GameRepository, players domain.PlayerRepository, bridgeOpts ...websocket.Option) *Server {
	s := &Server{
		Cfg:     cfg,
		Hub:     hub.New(),
		Broker:  pubsub.NewBroker(),
		Rules:   rules.NewEngine(),
		games:   games,
		players: players,
	}

	transcripts := storage.NewTranscriptStore(afero.NewOsFs(), cfg.TranscriptDir)
	s.Engine = game.NewEngine(game.Dependencies{
		Hub:         s.Hub,
		Rules:       s.Rules,
		Games:       games,
		Transcripts: transcripts,
		Subscriber:  s.Broker,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	e.Use(session.Middleware(store))

	s.E = e
	s.registerRoutes(bridgeOpts...)
	return s
}
