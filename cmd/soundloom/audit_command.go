package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundloom/internal/builder"
	"soundloom/internal/soundgroups"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var (
		fix    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify config references against disk and published sprites",
		Long: `Audit expands the sound-group config, checks that every referenced file
exists under the sounds directory, and re-verifies every sound key against
the published sprite manifests. Unverified entries are reported and kept,
never dropped. With --fix the processed config is written back out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			groups, configPath, err := ctx.loadGroups()
			if err != nil {
				return err
			}

			result, err := builder.Audit(cfg, groups, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Patterns expanded: %d\n", result.PatternsExpanded)
			fmt.Fprintf(out, "Missing files:     %d\n", len(result.MissingFiles))
			fmt.Fprintf(out, "Unverified sounds: %d\n", len(result.Unverified))
			for _, path := range result.MissingFiles {
				fmt.Fprintf(out, "  missing: %s\n", path)
			}
			for _, id := range result.Unverified {
				fmt.Fprintf(out, "  unverified: %s\n", id)
			}

			if fix || output != "" {
				target := output
				if target == "" {
					target = configPath
				}
				if err := soundgroups.WriteFile(target, result.Groups); err != nil {
					return fmt.Errorf("write processed config: %w", err)
				}
				fmt.Fprintf(out, "Wrote processed config to %s\n", target)
			}

			if cfg.Build.StrictAudit && !result.OK() {
				return fmt.Errorf("strict mode: %d missing files, %d unverified sounds",
					len(result.MissingFiles), len(result.Unverified))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Write the processed config back to the config file")
	cmd.Flags().StringVar(&output, "output", "", "Write the processed config to this path instead")
	return cmd
}
