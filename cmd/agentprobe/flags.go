package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sznuper/agentprobe/internal/config"
)

// registerOptionFlags adds a persistent --flag for every field in config.Options,
// deriving the flag name from the yaml struct tag (snake_case → kebab-case).
func registerOptionFlags(cmd *cobra.Command) {
	t := reflect.TypeOf(config.Options{})
	for i := range t.NumField() {
		f := t.Field(i)
		yamlTag := f.Tag.Get("yaml")
		flagName := strings.ReplaceAll(yamlTag, "_", "-")
		usage := "override options." + yamlTag
		switch f.Type.Kind() {
		case reflect.Bool:
			cmd.PersistentFlags().Bool(flagName, false, usage)
		case reflect.Int:
			cmd.PersistentFlags().Int(flagName, 0, usage)
		default:
			cmd.PersistentFlags().String(flagName, "", usage)
		}
	}
}

// applyOptionFlags overlays CLI flag values onto the config. Only flags
// explicitly set by the user are applied.
func applyOptionFlags(cmd *cobra.Command, cfg *config.Config) error {
	t := reflect.TypeOf(cfg.Options)
	v := reflect.ValueOf(&cfg.Options).Elem()
	for i := range t.NumField() {
		yamlTag := t.Field(i).Tag.Get("yaml")
		flagName := strings.ReplaceAll(yamlTag, "_", "-")
		if !cmd.Flags().Changed(flagName) {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.Bool:
			val, err := cmd.Flags().GetBool(flagName)
			if err != nil {
				return fmt.Errorf("--%s: %w", flagName, err)
			}
			field.SetBool(val)
		case reflect.Int:
			val, err := cmd.Flags().GetInt(flagName)
			if err != nil {
				return fmt.Errorf("--%s: %w", flagName, err)
			}
			field.SetInt(int64(val))
		default:
			val, _ := cmd.Flags().GetString(flagName)
			field.SetString(val)
		}
	}
	return nil
}
