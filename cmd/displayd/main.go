// Command displayd runs the display server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gogpu/display"
	"github.com/gogpu/display/config"
	"github.com/gogpu/display/hwc"
	"github.com/gogpu/display/server"
)

var version = display.Version

func main() {
	code, err := newRootCmd().execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

type rootCmd struct {
	*cobra.Command
	configFile string
	exitCode   int
}

func newRootCmd() *rootCmd {
	root := &rootCmd{}
	root.Command = &cobra.Command{
		Use:           "displayd",
		Short:         "Display server: buffer handoff, vsync-driven composition",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := root.newServer(cmd)
			if err != nil {
				return err
			}
			root.exitCode = runUntilSignal(cmd.Context(), srv)
			return nil
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := root.PersistentFlags()
	flags.StringVar(&root.configFile, "config", "", "config file (default is ./displayd.yaml or /etc/displayd/displayd.yaml)")
	flags.Int("width", 0, "display width in pixels")
	flags.Int("height", 0, "display height in pixels")
	flags.Int("refresh-rate", 0, "display refresh rate in Hz")
	flags.String("usage", "", "framebuffer usage: software or hardware")
	flags.String("backend", "", "hardware composer backend (auto picks the best available)")
	flags.String("generation", "", "hardware composer generation: 1.0 or 1.1")
	flags.Int("buffers", 0, "buffers per surface swapchain (2 or 3)")
	flags.String("format", "", "default surface pixel format")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("env-hacks", "", "colon separated NAME=VALUE pairs to set before starting")

	root.AddCommand(newDemoCmd(root), newBackendsCmd())
	return root
}

func (r *rootCmd) execute() (int, error) {
	if err := r.Execute(); err != nil {
		return 1, err
	}
	return r.exitCode, nil
}

// newServer loads the configuration, installs the logger and builds the
// server.
func (r *rootCmd) newServer(cmd *cobra.Command) (*server.Server, error) {
	cfg, err := config.LoadFlags(os.Args[0], r.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return server.New(cfg, server.WithExceptionHandler(func(err error) {
		display.Logger().Error("displayd: server failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	})), nil
}

func setupLogging(cfg *config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	display.SetLogger(slog.New(h))
	return nil
}

func runUntilSignal(ctx context.Context, srv *server.Server) int {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List hardware composer backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			available := make(map[string]bool)
			for _, name := range hwc.AvailableBackends() {
				available[name] = true
			}
			for _, name := range hwc.Backends() {
				state := "unavailable"
				if available[name] {
					state = "available"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, state)
			}
		},
	}
}
