package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"

	"github.com/danmuck/chplink/internal/config"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderPorts(ports))
		return nil
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Show the command registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderCommands(registry))
		return nil
	},
}

var (
	encodeSender  uint8
	encodePayload string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <command>",
	Short: "Print the frame bytes for a command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := parseCommandID(args[0])
		if err != nil {
			return err
		}
		payload, err := parsePayload(encodePayload)
		if err != nil {
			return err
		}
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		b, err := protocol.NewCodec(registry).Encode(encodeSender, command, payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), protocol.Hex(b))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		b, err := config.Render(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	encodeCmd.Flags().Uint8Var(&encodeSender, "sender", protocol.SenderPC, "sender id")
	encodeCmd.Flags().StringVar(&encodePayload, "payload", "", "payload as hex (empty sends zeros)")
}

func renderCommands(registry *schema.Registry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Payload", "Frame"})
	for _, e := range registry.Entries() {
		t.AppendRow(table.Row{
			fmt.Sprintf("0x%02X", e.Command),
			e.Name,
			e.Length,
			int(e.Length) + protocol.Overhead,
		})
	}
	return t.Render()
}

func renderPorts(ports []transport.PortInfo) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Port", "USB", "VID:PID", "Serial", "Product"})
	for _, p := range ports {
		ids := ""
		if p.IsUSB {
			ids = strings.ToLower(p.VID + ":" + p.PID)
		}
		t.AppendRow(table.Row{p.Name, p.IsUSB, ids, p.SerialNumber, p.Product})
	}
	return t.Render()
}
