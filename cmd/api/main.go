package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"repolens/internal/clone"
	"repolens/internal/config"
	"repolens/internal/events"
	"repolens/internal/explore"
	"repolens/internal/github"
	"repolens/internal/llmclient"
	"repolens/internal/server"
	"repolens/internal/store"
)

func main() {
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	if *port != "" {
		cfg.Port = config.NormalizeAddr(*port)
	}

	llm, err := llmclient.NewGeminiClient(context.Background(), cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client init failed")
	}
	defer llm.Close()

	bus := events.NewBus()

	clones := clone.NewOrchestrator(cfg.ReposDir, bus)
	clones.Grace = cfg.CloneGrace
	clones.SubscriberWait = cfg.SubscriberWait

	explorationStore := store.NewFromEnv(cfg.StoreDir)
	metaCache := store.NewMetaCache(512, 10*time.Minute)

	explorer := &explore.Service{
		Clones: clones,
		Loop: &explore.Loop{
			LLM:      llm,
			Bus:      bus,
			MaxSteps: cfg.MaxSteps,
		},
		Store:          explorationStore,
		Bus:            bus,
		SubscriberWait: cfg.SubscriberWait,
	}

	srv := &server.Server{
		Bus:      bus,
		Clones:   clones,
		Explorer: explorer,
		Store:    explorationStore,
		GitHub:   github.NewClient(metaCache, cfg.GitHubToken),
	}

	log.Info().Str("port", cfg.Port).Str("model", llm.Name()).Msg("starting api server")
	handler := h2c.NewHandler(srv.Router(), &http2.Server{})
	if err := http.ListenAndServe(cfg.Port, handler); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
