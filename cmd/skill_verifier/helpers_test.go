package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testSecret = "test-secret-0123456789"

// isolate runs the test in an empty directory with no backing services
// configured, so commands fall back to in-process stores
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, name := range []string{
		"DATABASE_URL", "SKILL_VERIFIER_DATABASE_URL",
		"REDIS_URL", "SKILL_VERIFIER_REDIS_URL",
		"OPENROUTER_API_KEY", "DEEPSEEK_API_KEY", "GEMINI_API_KEY", "SKILL_VERIFIER_AI_API_KEY",
		"GITHUB_TOKEN", "SKILL_VERIFIER_GITHUB_TOKEN",
		"SECRET_KEY", "SKILL_VERIFIER_INTEGRITY_SECRET",
	} {
		t.Setenv(name, "")
	}
}

// resetFlags restores every flag to its default between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns what it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
