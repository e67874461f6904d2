package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/meetcore/internal/adapters/http"
	"github.com/dkeye/meetcore/internal/adapters/engine"
	"github.com/dkeye/meetcore/internal/adapters/rtc"
	"github.com/dkeye/meetcore/internal/app/orch"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the backend and serve the session control API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		var media *webrtc.Configuration
		if cfg.Media.Enabled {
			c := rtc.DefaultWebRTCConfig(cfg.Media.STUNURLs...)
			media = &c
		}
		eng, err := engine.Dial(ctx, engine.Options{
			URL:         cfg.Backend.URL,
			DialTimeout: cfg.Backend.DialTimeout,
			Media:       media,
		})
		if err != nil {
			return err
		}
		defer eng.Close()

		sess := orch.New(eng, orch.Options{
			RequestTimeout: cfg.Session.RequestTimeout,
			InboxSize:      cfg.Session.InboxSize,
		})
		sess.Start(ctx)
		defer sess.Close()

		ctl := router.NewControl(sess, eng, cfg.Session.RequestTimeout+time.Second)
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.ControlPort)
		srv := &http.Server{Addr: addr, Handler: router.SetupControlRouter(cfg, ctl)}

		go func() {
			log.Info().Str("addr", addr).Str("backend", cfg.Backend.URL).Msg("meet session API started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("control server error")
				cancel()
			}
		}()

		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	runCmd.Flags().String("backend", "", "signaling backend WebSocket URL")
	runCmd.Flags().Int("control-port", 0, "local control API port")
	runCmd.Flags().Bool("media", false, "publish audio/video over WebRTC")
	runCmd.Flags().Duration("request-timeout", 0, "timeout for every backend request")
	bind("backend.url", runCmd, "backend")
	bind("control_port", runCmd, "control-port")
	bind("media.enabled", runCmd, "media")
	bind("session.request_timeout", runCmd, "request-timeout")
	rootCmd.AddCommand(runCmd)
}
