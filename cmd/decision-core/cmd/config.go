package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after defaults, file and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.load(); err != nil {
				return err
			}
			defer root.log.Close()
			out, err := yaml.Marshal(root.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.load(); err != nil {
				return err
			}
			defer root.log.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "✅ configuration is valid")
			return nil
		},
	})
	return cmd
}
