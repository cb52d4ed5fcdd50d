package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/librescoot/display-service/internal/config"
	"github.com/librescoot/display-service/internal/service"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.New()
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "display-service",
		Short:        "Display power and lock state service",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         func(cmd *cobra.Command, args []string) error { return run(cmd, cfg, cfgPath) },
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML policy file")
	cfg.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the display service (default)",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, args []string) error { return run(c, cfg, cfgPath) },
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the published display status",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, args []string) error { return status(c, cfg) },
		},
	)

	return cmd
}

func newLogger() *log.Logger {
	if os.Getenv("INVOCATION_ID") != "" {
		return log.New(os.Stdout, "", 0)
	}
	return log.New(os.Stdout, "display: ", log.LstdFlags|log.Lmsgprefix)
}

func loadConfig(cmd *cobra.Command, cfg *config.Config, path string) error {
	if path == "" {
		return cfg.Validate()
	}
	return cfg.Load(path, cmd.Flags())
}

func run(cmd *cobra.Command, cfg *config.Config, cfgPath string) error {
	if err := loadConfig(cmd, cfg, cfgPath); err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	logger.Printf("Starting display service %s", version)
	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("service failed: %w", err)
	}
	logger.Printf("Display service stopped")
	return nil
}

func status(cmd *cobra.Command, cfg *config.Config) error {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()

	fields, err := client.HGetAll(ctx, service.StatusKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read display status: %w", err)
	}
	if len(fields) == 0 {
		return fmt.Errorf("no display status published at %s", cfg.RedisAddr())
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%-16s %s\n", name, fields[name])
	}
	return nil
}
