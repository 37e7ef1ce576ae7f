// Command kolmodin starts the lobby/Twitch-chat game server core: the
// Twitch IRC subsystem, the Lobby Manager, and the HTTP/WebSocket
// endpoints in front of them.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kottz/kolmodin-go/internal/config"
	"github.com/kottz/kolmodin-go/internal/games/echo"
	"github.com/kottz/kolmodin-go/internal/games/helloworld"
	"github.com/kottz/kolmodin-go/internal/httpapi"
	"github.com/kottz/kolmodin-go/internal/lobby"
	"github.com/kottz/kolmodin-go/internal/logger"
	"github.com/kottz/kolmodin-go/internal/ratelimit"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Msg("fetching initial twitch app access token")
	tokenProvider, err := twitch.NewTokenProvider(ctx, cfg.Twitch.ClientID, cfg.Twitch.ClientSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch initial twitch app access token")
	}

	twitchService := twitch.NewService(ctx, tokenProvider)

	engines := map[string]lobby.EngineFactory{
		helloworld.GameTypeTag: helloworld.New,
		echo.GameTypeTag:       echo.New,
	}

	aliases := make(map[string]string)
	for _, alias := range helloworld.Aliases {
		aliases[alias] = helloworld.GameTypeTag
	}
	for _, alias := range echo.Aliases {
		aliases[alias] = echo.GameTypeTag
	}

	manager := lobby.NewManager(cfg.Games.EnabledTypes, helloworld.GameTypeTag, engines, aliases, nil, youtubeCredentialChecker{cfg}, twitchService)

	limiter := ratelimit.New(ratelimit.Config{
		Enabled:  cfg.Cache.Enabled,
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		Limit:    cfg.Server.RateLimitPerMin,
		Window:   time.Minute,
	})
	defer limiter.Close()

	router := httpapi.NewRouter(manager, limiter, cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("kolmodin server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel() // tears down the token provider refresh loop, twitch service, and any live channel agents

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server forced to shutdown")
	} else {
		log.Info().Msg("http server stopped gracefully")
	}
}

// youtubeCredentialChecker implements lobby.CredentialChecker: only a game
// type literally named "clipqueue" would need a YouTube API key, and
// neither reference engine does, so this simply reports availability for
// everything else.
type youtubeCredentialChecker struct {
	cfg *config.Config
}

func (c youtubeCredentialChecker) HasCredentials(gameTypeTag string) bool {
	if gameTypeTag == "clipqueue" {
		return c.cfg.YouTubeKey != ""
	}
	return true
}
