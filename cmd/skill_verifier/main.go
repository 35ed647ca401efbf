// Package main provides the entry point for the skill verifier CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debugLogs bool
	jsonLogs  bool
)

var rootCmd = &cobra.Command{
	Use:   "skill_verifier",
	Short: "Verify resume skills against GitHub activity",
	Long: "skill_verifier extracts the skills a resume claims, infers the skills a GitHub account demonstrates, " +
		"and produces an integrity-hashed verification report, from the command line or via REST API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is skill_verifier.yaml in the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&debugLogs, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json-logs", "j", false, "json format for logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
