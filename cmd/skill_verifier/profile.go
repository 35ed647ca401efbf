package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-verifier/internal/observability"
	"github.com/jonathan/skill-verifier/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Summarize the languages and technologies of a GitHub account",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().Int("max-repos", 0, "Repositories to analyze (default from config)")
	profileCmd.Flags().Bool("json", false, "Print the summary as JSON")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	username, err := pipeline.NormalizeUsername(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, map[string]string{"github.max_repos": "max-repos"})
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, appOptions{memory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.profiles.AccountSummary(cmd.Context(), username, cfg.GitHub.MaxRepos)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	observability.NewPrinter(out).PrintAccountSummary(summary)
	return nil
}
