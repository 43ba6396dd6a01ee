package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// status is the JSON body served on /status.
type status struct {
	Name       string `json:"name"`
	Phase      string `json:"phase"`
	Version    int64  `json:"version"`
	Admin      bool   `json:"admin"`
	Night      string `json:"night_view"`
	Discussion string `json:"discussion"`
	Voting     string `json:"voting"`
	Games      int    `json:"games_played"`
	Subscribed int    `json:"subscriptions"`

	Fetches       int64 `json:"fetches"`
	FetchFailures int64 `json:"fetch_failures"`
	Discards      int64 `json:"discards"`
	Resumes       int64 `json:"resumes"`
}

func setupServer(addr string, bot *Bot, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	setupHealthCheck(mux)
	setupStatus(mux, bot, services)

	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func setupStatus(mux *http.ServeMux, bot *Bot, services *Services) {
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := bot.session.Snapshot()
		m := services.Metrics
		body := status{
			Name:          snap.Self.Name,
			Phase:         string(snap.Phase),
			Version:       snap.Version,
			Admin:         snap.Self.IsAdmin,
			Night:         string(snap.Night.View),
			Discussion:    snap.Discussion,
			Voting:        snap.Voting,
			Games:         bot.Games(),
			Subscribed:    services.Sync.Subscribed(),
			Fetches:       m.Fetches.Load(),
			FetchFailures: m.FetchFailures.Load(),
			Discards:      m.Discards.Load(),
			Resumes:       m.Resumes.Load(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("failed to write status response")
		}
	})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
