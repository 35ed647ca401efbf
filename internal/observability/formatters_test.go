package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/skill-verifier/internal/types"
)

func sampleResult() *types.VerificationResult {
	return &types.VerificationResult{
		VerifiedSkills: []types.VerifiedSkill{
			{Skill: "Go", Evidence: []string{"Go"}, Reasoning: "direct match"},
			{Skill: "Node.js", Evidence: []string{"Express", "NestJS"}},
		},
		UnverifiedSkills:       []string{"Kubernetes"},
		AdditionalSkills:       []string{"Python"},
		VerificationPercentage: 66.67,
		StrengthPerSkill:       map[string]int{"Go": 8, "Node.js": 8},
		AverageStrength:        8,
		ExperienceLevel:        2,
		Summary:                "Strong backend evidence.",
	}
}

func TestPrintVerificationResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintVerificationResult(sampleResult())
	output := buf.String()

	assert.Contains(t, output, "SKILL VERIFICATION")
	assert.Contains(t, output, "66.7%")
	assert.Contains(t, output, "✓ Go (8/10)")
	assert.Contains(t, output, "evidence: Express, NestJS")
	assert.Contains(t, output, "Kubernetes")
	assert.Contains(t, output, "Python")
	assert.Contains(t, output, "Strong backend evidence.")
}

func TestPrintVerificationResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintVerificationResult(nil)

	assert.Empty(t, buf.String())
}

func TestPrintVerificationResult_TruncatesLongLists(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.VerificationResult{UnverifiedSkills: []string{"a", "b", "c", "d", "e", "f", "g"}}
	p.PrintVerificationResult(result)

	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestPrintRecord(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRecord(&types.VerificationRecord{
		ID:                 7,
		SubjectUsername:    "alice",
		DocumentName:       "alice.pdf",
		ClaimedSkills:      types.SkillList{"Go", "Node.js", "Kubernetes"},
		DemonstratedSkills: types.SkillList{"Go", "Express"},
		Result:             *sampleResult(),
		IntegrityHash:      strings.Repeat("ab", 32),
		CreatedAt:          time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	output := buf.String()

	assert.Contains(t, output, "VERIFICATION RECORD")
	assert.Contains(t, output, "#7")
	assert.Contains(t, output, "alice.pdf")
	assert.Contains(t, output, "2024-05-01 12:00:00 UTC")
	assert.Contains(t, output, "RESUME SKILLS")
	assert.Contains(t, output, "GITHUB SKILLS")
	assert.Contains(t, output, "SKILL VERIFICATION")
	assert.NotContains(t, output, strings.Repeat("ab", 32))
}

func TestPrintSkills_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSkills("RESUME SKILLS", nil)

	assert.Contains(t, buf.String(), "No skills found")
}

func TestPrintAccountSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAccountSummary(&types.AccountSummary{
		UserInfo: &types.UserInfo{Login: "alice", Name: "Alice Smith"},
		ProgrammingLanguages: &types.AccountLanguages{Languages: []types.LanguageStat{
			{Name: "Go", Percentage: 64.74},
			{Name: "Python", Percentage: 32.05},
		}},
		Technologies: &types.AccountTechnologies{Technologies: []types.TechnologyStat{
			{Name: "docker", Count: 2},
		}},
		TotalRepositories:    9,
		RepositoriesAnalyzed: 5,
	})
	output := buf.String()

	assert.Contains(t, output, "GITHUB ACCOUNT SUMMARY")
	assert.Contains(t, output, "Alice Smith")
	assert.Contains(t, output, "5 analyzed of 9")
	assert.Contains(t, output, "64.74%")
	assert.Contains(t, output, "docker")
	assert.Contains(t, output, "2 repos")
}

func TestPrintIntegrity(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintIntegrity("alice", []string{"Go", "Docker"}, true)
	assert.Contains(t, buf.String(), "HASH VALID")
	assert.Contains(t, buf.String(), "Docker, Go")

	buf.Reset()
	p.PrintIntegrity("alice", nil, false)
	assert.Contains(t, buf.String(), "HASH MISMATCH")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 200))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "", bar(0))
	assert.Equal(t, strings.Repeat("█", 10), bar(50))
	assert.Equal(t, strings.Repeat("█", 20), bar(100))
	assert.Equal(t, strings.Repeat("█", 20), bar(250))
}
