package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/chplink/internal/observability"
)

var (
	configPath string
	portPath   string
	baudRate   int
	loopback   bool
)

var rootCmd = &cobra.Command{
	Use:   "chplink",
	Short: "PC side of the MAIN controller serial link",
	Long: `chplink speaks the STX/ETX framed command protocol to the MAIN controller:
it keeps the heartbeat flowing, reassembles and checks inbound frames, and
sends commands with normal, priority, or retry-until-ack scheduling.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitLogger("chplink")
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config path (defaults are used when empty)")
	flags.StringVarP(&portPath, "port", "p", "", "serial device, overrides serial.path")
	flags.IntVarP(&baudRate, "baud", "b", 0, "baud rate, overrides serial.baud")
	flags.BoolVar(&loopback, "loopback", false, "run against the in-process MAIN simulator instead of a serial port")

	rootCmd.AddCommand(monitorCmd, sendCmd, portsCmd, commandsCmd, encodeCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("chplink failed")
		os.Exit(1)
	}
}
