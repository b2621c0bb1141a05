package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/restorelab/flagkit/pkg/feature"
)

func newRootCmd(a *app) *cobra.Command {
	var (
		featuresFile string
		env          string
		logLevel     string
		overridesDir string
	)

	cmd := &cobra.Command{
		Use:           "flagd",
		Short:         "Evaluate and serve feature flags",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("features") {
				a.cfg.FeaturesFile = featuresFile
			}
			if flags.Changed("env") {
				a.cfg.Env = env
			}
			if flags.Changed("log-level") {
				a.cfg.LogLevel = logLevel
			}
			if flags.Changed("overrides-dir") {
				a.cfg.OverridesDir = overridesDir
			}
			return a.setupLogger(cmd.ErrOrStderr())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&featuresFile, "features", "", "registry YAML file (default: built-in registry, env FEATURES_FILE)")
	pf.StringVar(&env, "env", "", "environment: dev, staging, prod or auto to derive it from the request host in serve (env APP_ENV)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (env LOG_LEVEL)")
	pf.StringVar(&overridesDir, "overrides-dir", ".flagkit", "directory for development overrides (env OVERRIDES_DIR)")

	cmd.AddCommand(
		newServeCmd(a),
		newEvalCmd(a),
		newBucketCmd(a),
		newListCmd(a),
		newMetaCmd(a),
		newOverrideCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func newEvalCmd(a *app) *cobra.Command {
	var (
		user   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "eval <feature>",
		Short: "Evaluate one feature and explain the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, engine, err := a.localEngine(cmd.Context())
			if err != nil {
				return err
			}

			var d feature.Decision
			if cmd.Flags().Changed("user") {
				d = engine.EvaluateFor(ctx, args[0], user)
			} else {
				d = engine.Evaluate(ctx, args[0])
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatDecision(d))
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to evaluate for")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func newBucketCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bucket <user> <feature>",
		Short: "Print the rollout bucket (0-99) of a user for a feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := a.localEngine(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), engine.UserRolloutBucket(args[0], args[1]))
			return err
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		user   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List enabled features in registry order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, engine, err := a.localEngine(cmd.Context())
			if err != nil {
				return err
			}

			var names []string
			if cmd.Flags().Changed("user") {
				names = engine.EnabledFeaturesFor(ctx, user)
			} else {
				names = engine.EnabledFeatures(ctx)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to evaluate for")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON")
	return cmd
}

func newMetaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <feature>",
		Short: "Print the configuration of a feature as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := a.localEngine(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), engine.Metadata(args[0]))
		},
	}
}

func newOverrideCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage development overrides",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <feature> <true|false>",
			Short: "Force a feature on or off",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled, err := strconv.ParseBool(args[1])
				if err != nil {
					return fmt.Errorf("override value must be true or false, got %q", args[1])
				}
				ctx, engine, err := a.localEngine(cmd.Context())
				if err != nil {
					return err
				}
				if engine.Metadata(args[0]).Kind == feature.KindUnknown {
					return fmt.Errorf("feature %q is not registered", args[0])
				}
				overrides, err := a.mutableOverrides(ctx, engine)
				if err != nil {
					return err
				}
				return overrides.Set(ctx, args[0], enabled)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print active overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, engine, err := a.localEngine(cmd.Context())
				if err != nil {
					return err
				}
				all := map[string]bool{}
				if o := engine.Overrides(); o != nil {
					all = o.All(ctx)
				}
				for _, name := range slices.Sorted(maps.Keys(all)) {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", name, all[name]); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every override",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, engine, err := a.localEngine(cmd.Context())
				if err != nil {
					return err
				}
				overrides, err := a.mutableOverrides(ctx, engine)
				if err != nil {
					return err
				}
				return overrides.Clear(ctx)
			},
		},
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "flagd %s\n", version)
			return err
		},
	}
}

func formatDecision(d feature.Decision) string {
	state := "disabled"
	if d.Enabled {
		state = "enabled"
	}
	detail := string(d.Reason)
	if d.Bucket != nil {
		detail += ", bucket " + strconv.Itoa(*d.Bucket)
	}
	return fmt.Sprintf("%s: %s (%s) env=%s", d.Feature, state, detail, d.Environment)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
