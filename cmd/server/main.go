// main.go bootstraps the quickstack server: a simulated world with drawers,
// the quick-stack pass service on top of it, and the HTTP/WebSocket surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type serverOptions struct {
	Addr               string
	ConfigPath         string
	DataDir            string
	WorldID            string
	SnapshotPath       string
	LoadLatestSnapshot bool
	DisableDB          bool
	EnableAdminHTTP    bool
	LogLevel           string
	Debug              bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := serverOptions{}
	cmd := &cobra.Command{
		Use:           "quickstack-server",
		Short:         "Run a quick-stack world with drawers and WebSocket clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.Addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&opts.ConfigPath, "config", "./configs/quickstack.yaml", "Path to quickstack.yaml (empty uses built-in defaults)")
	fs.StringVar(&opts.DataDir, "data", "./data", "Runtime data directory")
	fs.StringVar(&opts.WorldID, "world", "world_1", "World id")
	fs.StringVar(&opts.SnapshotPath, "snapshot", "", "Snapshot file to resume from")
	fs.BoolVar(&opts.LoadLatestSnapshot, "load-latest-snapshot", true, "Resume from the newest snapshot under the world's data dir")
	fs.BoolVar(&opts.DisableDB, "disable-db", false, "Disable the SQLite transfer index")
	fs.BoolVar(&opts.EnableAdminHTTP, "enable-admin-http", true, "Serve loopback-only /admin/v1 endpoints")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.Debug, "debug", false, "Shorthand for --log-level=debug")
	bindViper(cmd)
	return cmd
}

// bindViper lets QSTACK_<FLAG> environment variables fill any flag that was
// not set on the command line.
func bindViper(commands ...*cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("QSTACK")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		for _, cmd := range commands {
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if f.Changed || !v.IsSet(f.Name) {
					return
				}
				if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
					_ = f.Value.Set(val)
				}
			})
		}
	})
}
