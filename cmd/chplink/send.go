package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/chplink/internal/protocol/session"
)

var (
	sendMode    string
	sendWait    time.Duration
	sendPayload string
)

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send one command and print the frames that come back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := parseCommandID(args[0])
		if err != nil {
			return err
		}
		payload, err := parsePayload(sendPayload)
		if err != nil {
			return err
		}
		mode, err := session.ParseMode(sendMode)
		if err != nil {
			return err
		}
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		cfg.Link.HeartbeatDisabled = true

		link, err := openLink(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer link.Close()

		if err := link.Send(cfg.Link.SenderID, command, payload, mode); err != nil {
			return err
		}
		codec := link.Codec()
		deadline := time.After(sendWait)
		for {
			select {
			case out, ok := <-link.Inbox():
				if !ok {
					return link.Err()
				}
				fmt.Fprintln(cmd.OutOrStdout(), describe(codec, out))
				if out.IsFrame() && out.Frame.Command == command {
					return nil
				}
			case <-deadline:
				log.Warn().Str("cmd", codec.Commands.Name(command)).Dur("wait", sendWait).Msg("no response")
				return nil
			}
		}
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendPayload, "payload", "", "payload as hex (empty sends zeros)")
	sendCmd.Flags().StringVar(&sendMode, "mode", "normal", "normal|priority|retry")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 2*time.Second, "how long to wait for the response frame")
}

// parseCommandID accepts 0xA0, A0, or 160.
func parseCommandID(raw string) (uint8, error) {
	raw = strings.TrimSpace(raw)
	base := 10
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "0x"):
		raw, base = raw[2:], 16
	case strings.ContainsAny(lower, "abcdef"):
		base = 16
	}
	v, err := strconv.ParseUint(raw, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid command id %q", raw)
	}
	return uint8(v), nil
}

func parsePayload(raw string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(raw))
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("payload must be hex: %w", err)
	}
	return b, nil
}
