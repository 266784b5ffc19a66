package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yilmaeng/Pinpon2/internal/app"
	"github.com/yilmaeng/Pinpon2/internal/server"
	"github.com/yilmaeng/Pinpon2/internal/web"
)

type config struct {
	bind      string
	port      int
	staticDir string
	verbose   bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PINPON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "pinpon-server",
		Short:         "Real-time relay server pairing two players into a match over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "", "address to bind to (env: PINPON_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: PINPON_PORT)")
	fs.StringVar(&cfg.staticDir, "static-dir", "public", "directory of client assets to serve (env: PINPON_STATIC_DIR)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: PINPON_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}

func run(ctx context.Context, cfg *config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	application := app.New(app.Config{Logger: logger})
	go application.Hub.Run()
	defer application.Hub.Close()

	router := web.NewRouter(web.RouterConfig{
		Logger:    logger,
		Hub:       application.Hub,
		StaticDir: cfg.staticDir,
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Host = cfg.bind
	serverConfig.Port = cfg.port
	srv := server.New(router, serverConfig, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server started", slog.String("addr", srv.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

func main() {
	if err := newCmd(&config{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
