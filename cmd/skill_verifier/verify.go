package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-verifier/internal/observability"
	"github.com/jonathan/skill-verifier/internal/pipeline"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a resume against a GitHub account",
	Long: `Extract the skills a resume claims, infer the skills the GitHub account demonstrates,
and print the persisted verification record. The account is read from the resume when --username is omitted.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringP("resume", "r", "", "Path to the resume PDF (required)")
	verifyCmd.Flags().StringP("username", "u", "", "GitHub username (default: resolved from the resume)")
	verifyCmd.Flags().Int("max-repos", 0, "Repositories to analyze (default from config)")
	verifyCmd.Flags().Bool("memory", false, "Keep the record in memory even when a database is configured")
	verifyCmd.Flags().Bool("json", false, "Print the record as JSON")
	verifyCmd.Flags().BoolP("verbose", "v", false, "Print progress for each step")
	_ = verifyCmd.MarkFlagRequired("resume")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"github.max_repos": "max-repos"})
	if err != nil {
		return err
	}

	resumePath, _ := cmd.Flags().GetString("resume")
	data, err := os.ReadFile(resumePath)
	if err != nil {
		return fmt.Errorf("failed to read resume: %w", err)
	}

	out := cmd.OutOrStdout()
	opts := appOptions{needsHasher: true}
	opts.memory, _ = cmd.Flags().GetBool("memory")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		var mu sync.Mutex
		opts.onProgress = func(event pipeline.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(out, "[%s] %s\n", event.Step, event.Message)
		}
	}

	a, err := newApp(cmd.Context(), cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	username, _ := cmd.Flags().GetString("username")
	record, err := a.verifier.Run(cmd.Context(), pipeline.Request{
		Document:     data,
		DocumentName: filepath.Base(resumePath),
		Username:     username,
	})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	observability.NewPrinter(out).PrintRecord(record)
	return nil
}
