package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/protocol/session"
	"github.com/danmuck/chplink/internal/server"
)

var (
	pollInterval time.Duration
	httpAddr     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open the link and log every inbound frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		if httpAddr != "" {
			cfg.HTTPAddr = httpAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		link, err := openLink(ctx, cfg)
		if err != nil {
			return err
		}
		defer link.Close()

		if cfg.HTTPAddr != "" {
			srv := server.New(link, server.Options{Addr: cfg.HTTPAddr, CORSOrigins: cfg.CORSOrigins, Token: cfg.HTTPToken})
			go func() {
				if err := srv.Run(ctx); err != nil {
					log.Error().Err(err).Msg("status server stopped")
					stop()
				}
			}()
		}
		if pollInterval > 0 {
			go pollStatus(ctx, link, pollInterval)
		}
		go logObservations(ctx, link)

		codec := link.Codec()
		for out := range link.Inbox() {
			if out.IsFrame() {
				log.Info().Msg(describe(codec, out))
			} else {
				log.Warn().Msg(describe(codec, out))
			}
		}
		<-link.Done()
		return link.Err()
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&pollInterval, "poll", 0, "request common and cold status at this interval (0 disables)")
	monitorCmd.Flags().StringVar(&httpAddr, "http", "", "status server address, overrides http.addr")
}

// pollStatus asks MAIN for the two status blocks the host displays.
func pollStatus(ctx context.Context, link *session.Session, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	sender := link.Config().SenderID
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cmd := range []uint8{schema.CmdCommonStatus, schema.CmdColdStatus} {
				if err := link.Send(sender, cmd, nil, session.ModeNormal); err != nil {
					log.Warn().Err(err).Uint8("cmd", cmd).Msg("status poll failed")
					return
				}
			}
		}
	}
}

func logObservations(ctx context.Context, link *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-link.Done():
			return
		case obs := <-link.Observations():
			if obs.Err != nil {
				log.Warn().Err(obs.Err).Str("mode", obs.Mode.String()).Msg("send failed")
				continue
			}
			log.Debug().Str("mode", obs.Mode.String()).Int("bytes", len(obs.Bytes)).Msg("tx")
		}
	}
}
