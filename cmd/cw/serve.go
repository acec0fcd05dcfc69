package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/api"
	"github.com/zulandar/cellwatch/internal/cell"
	"github.com/zulandar/cellwatch/internal/config"
	"github.com/zulandar/cellwatch/internal/poller"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cell poller and HTTP API",
		Long: `Ticks the cell on the configured poll schedule and serves the HTTP API.
Each tick reads the controller, logs what happened, and writes new routes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cell config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides api.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.API.Port = port
	}
	if err := poller.ValidateSchedule(cfg.Poll.Schedule); err != nil {
		return err
	}

	c, err := cell.Open(cfg)
	if err != nil {
		return fmt.Errorf("open cell %s: %w", cfg.Cell, err)
	}
	defer c.Close()
	fmt.Fprintf(out, "Cell %q using %s controller\n", cfg.Cell, c.Controller().Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	p, err := poller.New(cfg.Poll.Schedule, c)
	if err != nil {
		return err
	}
	p.RunOnce(ctx)
	p.Start(ctx)
	defer p.Stop()
	fmt.Fprintf(out, "Polling on %q\n", cfg.Poll.Schedule)

	return api.Start(ctx, api.StartOpts{
		Service: c,
		Port:    cfg.API.Port,
		Out:     out,
	})
}
