package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-verifier/internal/db"
	"github.com/jonathan/skill-verifier/internal/integrity"
	"github.com/jonathan/skill-verifier/internal/observability"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute or check verification integrity hashes",
}

var hashComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Print the integrity hash of a subject and skill set",
	RunE:  runHashCompute,
}

var hashVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a hash against a skill set, or a stored record against its own hash",
	RunE:  runHashVerify,
}

func init() {
	for _, c := range []*cobra.Command{hashComputeCmd, hashVerifyCmd} {
		c.Flags().StringP("username", "u", "", "Subject GitHub username")
		c.Flags().StringSliceP("skills", "s", nil, "Verified skills, comma separated")
	}
	_ = hashComputeCmd.MarkFlagRequired("username")
	hashVerifyCmd.Flags().String("hash", "", "Hash to check against --username and --skills")
	hashVerifyCmd.Flags().Int64("id", 0, "Stored verification record to check")
	hashVerifyCmd.MarkFlagsMutuallyExclusive("hash", "id")
	hashVerifyCmd.MarkFlagsOneRequired("hash", "id")

	hashCmd.AddCommand(hashComputeCmd, hashVerifyCmd)
	rootCmd.AddCommand(hashCmd)
}

func hasher(cmd *cobra.Command) (*integrity.Hasher, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}
	h, err := integrity.NewHasher(cfg.Integrity.Secret)
	if err != nil {
		return nil, fmt.Errorf("integrity.secret (or SECRET_KEY) must be set: %w", err)
	}
	return h, nil
}

func trimmed(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runHashCompute(cmd *cobra.Command, _ []string) error {
	h, err := hasher(cmd)
	if err != nil {
		return err
	}
	username, _ := cmd.Flags().GetString("username")
	skills, _ := cmd.Flags().GetStringSlice("skills")

	_, err = fmt.Fprintln(cmd.OutOrStdout(), h.ComputeHash(username, trimmed(skills)))
	return err
}

// errTampered signals a failed check so the exit status is non-zero
var errTampered = errors.New("integrity check failed")

func runHashVerify(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	skills = trimmed(skills)
	hash, _ := cmd.Flags().GetString("hash")

	if id, _ := cmd.Flags().GetInt64("id"); id != 0 {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, appOptions{needsHasher: true})
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.records.GetByID(cmd.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrRecordNotFound) {
				return fmt.Errorf("verification %d: %w", id, err)
			}
			return err
		}
		username, skills, hash = record.SubjectUsername, record.Result.VerifiedSkillNames(), record.IntegrityHash
		return report(cmd, a.hasher, username, skills, hash)
	}

	if username == "" {
		return errors.New(`required flag(s) "username" not set`)
	}
	h, err := hasher(cmd)
	if err != nil {
		return err
	}
	return report(cmd, h, username, skills, hash)
}

func report(cmd *cobra.Command, h *integrity.Hasher, username string, skills []string, hash string) error {
	valid := h.Verify(username, skills, hash)
	observability.NewPrinter(cmd.OutOrStdout()).PrintIntegrity(username, skills, valid)
	if !valid {
		return errTampered
	}
	return nil
}
