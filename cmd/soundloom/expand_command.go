package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"soundloom/internal/soundgroups"
)

func newExpandCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand applyPattern declarations into explicit version groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, _, err := ctx.loadGroups()
			if err != nil {
				return err
			}
			expanded := soundgroups.ExpandAll(groups)

			if output != "" {
				if err := soundgroups.WriteFile(output, expanded); err != nil {
					return fmt.Errorf("write expanded config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote expanded config to %s\n", output)
				return nil
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(expanded)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Write the expanded config to this path instead of stdout")
	return cmd
}
