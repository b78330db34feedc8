package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/logger"
	"github.com/rafaeljc/slipup/internal/targeting"
	"github.com/rafaeljc/slipup/internal/validation"
)

type evalOptions struct {
	userID string
	device targeting.DeviceInfo
	extra  map[string]string
}

func newEvalCmd() *cobra.Command {
	var o evalOptions

	cmd := &cobra.Command{
		Use:   "eval <flag-key>",
		Short: "Initialize once and print the evaluation of a flag as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.FlagKey(args[0]); err != nil {
				return err
			}
			return runEval(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags.Key(args[0]), o)
		},
	}

	cmd.Flags().StringVar(&o.userID, "user-id", "", "targeting user id")
	cmd.Flags().StringVar(&o.device.OS, "device-os", "", "device operating system")
	cmd.Flags().StringVar(&o.device.OSVersion, "device-os-version", "", "device operating system version")
	cmd.Flags().StringVar(&o.device.Model, "device-model", "", "device model")
	cmd.Flags().StringVar(&o.device.Manufacturer, "device-manufacturer", "", "device manufacturer")
	cmd.Flags().StringToStringVar(&o.extra, "attr", nil, "extra targeting attributes (key=value)")

	return cmd
}

func runEval(ctx context.Context, stdout, stderr io.Writer, key flags.Key, o evalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout stays machine readable.
	log := logger.NewWithWriter(&cfg.App, stderr)

	opts := flags.OptionsFromConfig(cfg)
	opts.Logger = log
	r := flags.New(opts)
	defer r.Destroy()

	res, err := r.Initialize(ctx)
	if err != nil {
		return err
	}
	if !res.Ready() {
		log.Warn("serving defaults", slog.Any("reason", res.Reason))
	}

	var device *targeting.DeviceInfo
	if o.device != (targeting.DeviceInfo{}) {
		device = &o.device
	}
	r.SetTargetingAttributes(o.userID, device, maps.Clone(o.extra))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Evaluate(key)); err != nil {
		return fmt.Errorf("failed to write evaluation: %w", err)
	}
	return nil
}
