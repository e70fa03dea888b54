package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vizier-dev/vizier/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration",
	Long: `Display the effective configuration after merging defaults, the user
config, the project .vizier.yaml and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		apiKey := "(not set)"
		if cfg.Agent.APIKey != "" {
			apiKey = "****"
		}

		fmt.Printf("agent.bin: %s\n", cfg.Agent.Bin)
		fmt.Printf("agent.planner_model: %s\n", cfg.Agent.PlannerModel)
		fmt.Printf("agent.verifier_model: %s\n", cfg.Agent.VerifierModel)
		fmt.Printf("agent.use_api: %t\n", cfg.Agent.UseAPI)
		fmt.Printf("agent.api_key: %s\n", apiKey)
		fmt.Printf("agent.use_aws_bedrock: %t\n", cfg.Agent.UseAWSBedrock)
		fmt.Printf("run.attempts_per_tier: %d\n", cfg.Run.AttemptsPerTier)
		fmt.Printf("run.keep_workspaces: %t\n", cfg.Run.KeepWorkspaces)
		fmt.Printf("run.ladder_file: %s\n", cfg.Run.LadderFile)
		fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)

		fmt.Printf("\nuser config: %s\n", config.UserConfigPath())
		if p := config.ProjectConfigPath(); p != "" {
			fmt.Printf("project config: %s\n", p)
		}
		return nil
	},
}
