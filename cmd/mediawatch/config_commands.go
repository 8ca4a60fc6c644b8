package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediawatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

// initTarget resolves the --path flag, falling back to the default config
// location.
func initTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

// refuseExisting fails when path exists and overwrite is off.
func refuseExisting(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check %s: %w", path, err)
	}
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath  string
		overwrite   bool
		writeEnv    bool
		jellyfinURL string
		feeds       []string
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Long:        "Create a sample configuration file. --jellyfin-url and --feed seed the library and feed sections; --write-env also writes a .env template beside it and leaves the secrets in the config blank.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if err := refuseExisting(target, overwrite); err != nil {
				return err
			}
			envPath := filepath.Join(filepath.Dir(target), defaultEnvFile)
			if writeEnv {
				if err := refuseExisting(envPath, overwrite); err != nil {
					return err
				}
			}

			opts := config.SampleOptions{JellyfinURL: jellyfinURL, Feeds: feeds, SecretsFromEnv: writeEnv}
			if err := config.CreateSample(target, opts); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)

			if !writeEnv {
				fmt.Fprintln(out, "Edit the [jellyfin] and [tmdb] sections (or export JELLYFIN_API_KEY and TMDB_API_KEY) before running mediawatch.")
				return nil
			}
			if err := os.WriteFile(envPath, []byte(config.EnvTemplate()), 0o600); err != nil {
				return fmt.Errorf("write env template: %w", err)
			}
			fmt.Fprintf(out, "Wrote env template to %s\n", envPath)
			fmt.Fprintf(out, "Fill in the secrets there and pass --env-file %s (or run from that directory).\n", envPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files if present")
	cmd.Flags().BoolVar(&writeEnv, "write-env", false, "Also write a .env template next to the config and leave secrets blank in it")
	cmd.Flags().StringVar(&jellyfinURL, "jellyfin-url", "", "Jellyfin server URL to seed into [jellyfin]")
	cmd.Flags().StringArrayVar(&feeds, "feed", nil, "RSS/Atom feed URL to seed into [feeds] (repeatable)")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); err != nil {
				fmt.Fprintln(out, "Config file did not exist; defaults and environment were used")
			}
			fmt.Fprintf(out, "Freshness backend: %s\n", cfg.Freshness.Backend)
			fmt.Fprintf(out, "Email enabled: %s\n", yesNo(cfg.Email.Enabled))
			fmt.Fprintf(out, "ntfy enabled: %s\n", yesNo(cfg.Ntfy.Topic != ""))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
