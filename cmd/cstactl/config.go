package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/csta/internal/config"
)

func configCmd() *cobra.Command {
	var (
		output   string
		force    bool
		validate string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print, write or validate a client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if validate != "" {
				cfg, err := config.Load(validate)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "valid: %s:%s mode=%s\n", cfg.Host, cfg.Port, cfg.Mode)
				return nil
			}
			if output != "" {
				if err := config.WriteTemplate(output, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			}
			tpl, err := config.Template()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tpl)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the default config to this path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&validate, "validate", "", "load and validate this config file")
	return cmd
}
