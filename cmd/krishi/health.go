package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the advisory backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVoiceClient()
		if err != nil {
			return err
		}
		h, err := client.Health(cmd.Context())
		if err != nil {
			return err
		}
		if !h.Healthy() {
			return fmt.Errorf("backend reports status %q", h.Status)
		}
		fmt.Printf("%s %s: %s\n", h.Service, h.Version, h.Status)
		return nil
	},
}
