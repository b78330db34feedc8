package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/logger"
	"github.com/rafaeljc/slipup/internal/remote"
)

func newPublishCmd() *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:   "publish <payload.json>",
		Short: "Validate a definition payload and store it in Redis",
		Long: "Validate a definition payload and store it under the configured Redis key.\n" +
			"Older versions never overwrite newer ones.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], version)
		},
	}

	cmd.Flags().Int64Var(&version, "version", -1, "version to publish (defaults to the payload version)")

	return cmd
}

func runPublish(ctx context.Context, stdout, stderr io.Writer, path string, version int64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(&cfg.App, stderr)
	ctx = logger.WithContext(ctx, log)

	raw, set, err := remote.ReadPayload(path)
	if err != nil {
		return fmt.Errorf("invalid payload %s: %w", path, err)
	}
	if version < 0 {
		version = set.Version
	}

	if !cfg.Redis.IsConfigured() {
		return fmt.Errorf("redis is not configured: set SLIPUP_REDIS_URL or a redis:// flags endpoint")
	}

	client, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	store := cache.NewRedisStore(client, cfg.Redis.DefinitionsKey)
	defer store.Close()

	result, err := store.PutDefinitions(ctx, version, raw)
	if err != nil {
		return fmt.Errorf("failed to publish definitions: %w", err)
	}

	log.Info("definitions published",
		slog.String("key", store.Key()),
		slog.Int64("version", version),
		slog.Int("flags", len(set.Flags)),
		slog.String("result", result.String()),
	)
	_, err = fmt.Fprintln(stdout, result.String())
	return err
}
