package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobq/internal/config"
)

// configEntry is one key of the effective configuration.
type configEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func newConfigCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change queue settings",
	}
	cmd.AddCommand(
		newConfigGetCmd(cfg, structured),
		newConfigSetCmd(structured),
		newConfigKeysCmd(cfg, structured),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := lookupConfig(cfg, args[0])
			if err != nil {
				return err
			}
			if structured() {
				return writeStructured(entry)
			}
			return writePlain("%s\n", entry.Value)
		},
	}
}

func newConfigSetCmd(structured func() bool) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a key in the project config (or --global)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFor := config.ProjectPath
			if global {
				pathFor = config.GlobalPath
			}
			path, err := pathFor()
			if err != nil {
				return err
			}
			if err := config.SetKey(path, args[0], args[1]); err != nil {
				return err
			}

			if structured() {
				return writeStructured(map[string]string{"key": args[0], "value": args[1], "path": path})
			}
			return writePlain("%s written to %s\n", args[0], path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to global config (~/.jobq.toml, or $JOBQ_CONFIG_DIR/.jobq.toml)")
	return cmd
}

func newConfigKeysCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make([]configEntry, 0, len(config.AllowedKeys()))
			for _, key := range config.AllowedKeys() {
				entry, err := lookupConfig(cfg, key)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}

			if structured() {
				return writeStructured(entries)
			}
			for _, entry := range entries {
				if err := writePlain("%s = %s\n", entry.Key, entry.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func lookupConfig(cfg *config.Config, key string) (configEntry, error) {
	if !config.IsAllowedKey(key) {
		return configEntry{}, fmt.Errorf("unknown key %q (see `jobq config keys`)", key)
	}
	value, err := cfg.Get(key)
	if err != nil {
		return configEntry{}, err
	}
	return configEntry{Key: key, Value: value}, nil
}
