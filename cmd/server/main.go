package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/meetcore/internal/adapters/http"
	"github.com/dkeye/meetcore/internal/adapters/rtc"
	sig "github.com/dkeye/meetcore/internal/adapters/signal"
	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(config.New(), "")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	signer, err := backend.NewUserSigner(cfg.Secret, cfg.UserSigTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("usersig signer")
	}
	hub := backend.NewHub(signer, backend.NewJoinLimiter(cfg.JoinLimit, cfg.JoinInterval))

	opts := sig.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod}
	if cfg.Media.Enabled {
		media := rtc.DefaultWebRTCConfig(cfg.Media.STUNURLs...)
		opts.Media = &media
	}
	ctl := sig.NewSignalWSController(hub, opts)

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meet backend started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
