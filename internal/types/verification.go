package types

import (
	"strings"
	"time"
)

// SkillList is an unordered collection of human-readable skill names.
// Case and punctuation variants are kept as written.
type SkillList []string

// VerifiedSkill is a claimed skill backed by demonstrated evidence
type VerifiedSkill struct {
	Skill     string   `json:"skill"`
	Evidence  []string `json:"evidence"`
	Reasoning string   `json:"reasoning"`
}

// VerificationResult is the outcome of comparing claimed against demonstrated skills.
// VerifiedSkills and UnverifiedSkills partition the claimed list; AdditionalSkills never
// repeats a claimed skill.
type VerificationResult struct {
	VerifiedSkills         []VerifiedSkill `json:"verified_skills"`
	UnverifiedSkills       []string        `json:"unverified_skills"`
	AdditionalSkills       []string        `json:"additional_skills"`
	VerificationPercentage float64         `json:"verification_percentage"`
	StrengthPerSkill       map[string]int  `json:"strength_per_skill"`
	AverageStrength        float64         `json:"average_strength"`
	ExperienceLevel        float64         `json:"experience_level"`
	Summary                string          `json:"summary"`
}

// VerifiedSkillNames returns the names of all verified skills in result order.
func (r *VerificationResult) VerifiedSkillNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.VerifiedSkills))
	for _, vs := range r.VerifiedSkills {
		names = append(names, vs.Skill)
	}
	return names
}

// VerificationRecord is the persisted result of one pipeline run. It is never mutated after creation.
type VerificationRecord struct {
	ID                  int64              `json:"verification_id"`
	SubjectUsername     string             `json:"github_username"`
	DocumentFingerprint string             `json:"document_fingerprint"`
	DocumentName        string             `json:"resume_file_name,omitempty"`
	ClaimedSkills       SkillList          `json:"resume_skills"`
	DemonstratedSkills  SkillList          `json:"github_skills"`
	Result              VerificationResult `json:"verification_result"`
	IntegrityHash       string             `json:"hash"`
	CreatedAt           time.Time          `json:"created_at"`
}

// FoldSkill returns the case-folded comparison form of a skill name.
func FoldSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
