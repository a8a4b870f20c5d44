package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"menagerie/server/internal/config"
)

// CheckCmd validates a config file and prints the effective settings.
func CheckCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "check",
		Short: "validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "hjson config file")
	return c
}
