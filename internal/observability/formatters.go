// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/skill-verifier/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for reports
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// clip shortens s to at most n runes, marking the cut with "..."
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList writes up to limit items as bullets, then a count of the rest
func writeList(sb *strings.Builder, items []string, limit int) {
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

// PrintSkills outputs a titled skill list.
func (p *Printer) PrintSkills(title string, skills types.SkillList) {
	var sb strings.Builder
	if len(skills) == 0 {
		sb.WriteString("No skills found")
	} else {
		sb.WriteString(fmt.Sprintf("%d skills:\n", len(skills)))
		writeList(&sb, skills, 2*maxItemsToShow)
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVerificationResult outputs verified skills with their evidence, the
// unverified and additional skills, and the strength scores.
func (p *Printer) PrintVerificationResult(result *types.VerificationResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Verified:    %.1f%%\n", result.VerificationPercentage))
	sb.WriteString(fmt.Sprintf("Strength:    %.1f avg, experience %.1f\n", result.AverageStrength, result.ExperienceLevel))
	sb.WriteString("\n")

	if len(result.VerifiedSkills) > 0 {
		sb.WriteString("Verified Skills:\n")
		count := min(len(result.VerifiedSkills), maxItemsToShow)
		for i := 0; i < count; i++ {
			vs := result.VerifiedSkills[i]
			line := fmt.Sprintf("  ✓ %s", vs.Skill)
			if strength, ok := result.StrengthPerSkill[vs.Skill]; ok {
				line += fmt.Sprintf(" (%d/10)", strength)
			}
			sb.WriteString(line + "\n")
			if len(vs.Evidence) > 0 {
				sb.WriteString(fmt.Sprintf("    evidence: %s\n", strings.Join(vs.Evidence, ", ")))
			}
		}
		if len(result.VerifiedSkills) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.VerifiedSkills)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(result.UnverifiedSkills) > 0 {
		sb.WriteString("Unverified Skills:\n")
		writeList(&sb, result.UnverifiedSkills, maxItemsToShow)
		sb.WriteString("\n")
	}

	if len(result.AdditionalSkills) > 0 {
		sb.WriteString("Additional Skills:\n")
		writeList(&sb, result.AdditionalSkills, 3)
		sb.WriteString("\n")
	}

	if result.Summary != "" {
		sb.WriteString(result.Summary)
	}

	p.printBox("SKILL VERIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecord outputs a stored verification: identity, hash and result.
func (p *Printer) PrintRecord(record *types.VerificationRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Verification: #%d\n", record.ID))
	sb.WriteString(fmt.Sprintf("GitHub:       %s\n", record.SubjectUsername))
	if record.DocumentName != "" {
		sb.WriteString(fmt.Sprintf("Resume:       %s\n", record.DocumentName))
	}
	if !record.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Created:      %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	}
	sb.WriteString(fmt.Sprintf("Hash:         %s", clip(record.IntegrityHash, 24)))

	p.printBox("VERIFICATION RECORD", sb.String())
	p.PrintSkills("RESUME SKILLS", record.ClaimedSkills)
	p.PrintSkills("GITHUB SKILLS", record.DemonstratedSkills)
	p.PrintVerificationResult(&record.Result)
}

// PrintAccountSummary outputs an account's languages and technologies.
func (p *Printer) PrintAccountSummary(summary *types.AccountSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	if summary.UserInfo != nil {
		sb.WriteString(fmt.Sprintf("Account:      %s\n", summary.UserInfo.Login))
		if summary.UserInfo.Name != "" {
			sb.WriteString(fmt.Sprintf("Name:         %s\n", summary.UserInfo.Name))
		}
	}
	sb.WriteString(fmt.Sprintf("Repositories: %d analyzed of %d\n", summary.RepositoriesAnalyzed, summary.TotalRepositories))

	if langs := summary.ProgrammingLanguages; langs != nil && len(langs.Languages) > 0 {
		sb.WriteString("\nLanguages:\n")
		count := min(len(langs.Languages), maxItemsToShow)
		for i := 0; i < count; i++ {
			l := langs.Languages[i]
			sb.WriteString(fmt.Sprintf("  %-16s %6.2f%%  %s\n", clip(l.Name, 16), l.Percentage, bar(l.Percentage)))
		}
	}

	if techs := summary.Technologies; techs != nil && len(techs.Technologies) > 0 {
		sb.WriteString("\nTechnologies:\n")
		count := min(len(techs.Technologies), maxItemsToShow)
		for i := 0; i < count; i++ {
			t := techs.Technologies[i]
			sb.WriteString(fmt.Sprintf("  %-16s %d repos\n", clip(t.Name, 16), t.Count))
		}
	}

	p.printBox("GITHUB ACCOUNT SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// bar renders a percentage as a 20-cell bar
func bar(pct float64) string {
	cells := int(pct/5 + 0.5)
	cells = max(0, min(cells, 20))
	return strings.Repeat("█", cells)
}

// PrintIntegrity outputs whether a record's hash still matches its verified skills.
func (p *Printer) PrintIntegrity(subject string, skills []string, valid bool) {
	sorted := append([]string(nil), skills...)
	sort.Strings(sorted)

	status := "✅ HASH VALID"
	if !valid {
		status = "⚠ HASH MISMATCH"
	}
	p.printBox(status, fmt.Sprintf("Subject: %s\nSkills:  %s", subject, strings.Join(sorted, ", ")))
}
