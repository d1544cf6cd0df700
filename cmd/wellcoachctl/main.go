package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is shared by every subcommand; client is set before any RunE.
type app struct {
	server     string
	configPath string
	client     *Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "wellcoachctl",
		Short:         "Operate the wellcoach recommendation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath, a.server)
			if err != nil {
				return err
			}
			a.client = NewClient(cfg.ServerURL, cfg.RequestTimeout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.server, "server", "", "server base URL (default http://localhost:8080)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		clientsCmd(a),
		generateCmd(a),
		listCmd(a),
		disposeCmd(a, "accept"),
		disposeCmd(a, "decline"),
		deleteCmd(a),
		bulkCmd(a),
	)
	return root
}
