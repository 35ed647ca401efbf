// Package verification compares claimed skills with demonstrated skills, using
// the AI backend when it answers well and a deterministic match otherwise.
package verification

import (
	"encoding/json"
	"math"

	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/schemas"
	"github.com/jonathan/skill-verifier/internal/types"
	schemafiles "github.com/jonathan/skill-verifier/schemas"
)

const (
	// FallbackReasoning marks skills verified by the deterministic strategy
	FallbackReasoning = "direct match, fallback mode"
	// FallbackSummary is the summary of a deterministic result
	FallbackSummary = "Basic comparison performed. This is a fallback method."

	baseStrength = 6
	maxStrength  = 10
)

var resultSchema = schemas.MustCompile("verification_result", schemafiles.VerificationResult)

// ParseOutcome is the result of reading an AI reply. Exactly one of Result
// and Malformed is set; callers must check Malformed before using Result.
type ParseOutcome struct {
	Result    *types.VerificationResult
	Malformed bool
	Reason    string
}

func malformed(reason string) ParseOutcome {
	return ParseOutcome{Malformed: true, Reason: reason}
}

// Parse reads a verification result from a model reply. The reply must hold
// a JSON object with every required field; anything else is Malformed.
func Parse(raw string) ParseOutcome {
	cleaned := llm.CleanJSONBlock(raw)
	payload := cleaned
	if !json.Valid([]byte(payload)) {
		payload = llm.FirstJSONObject(cleaned)
	}
	if payload == "" {
		return malformed("no JSON object in response")
	}

	if err := resultSchema.Validate([]byte(payload)); err != nil {
		return malformed(err.Error())
	}

	var result types.VerificationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return malformed(err.Error())
	}
	return ParseOutcome{Result: &result}
}

// dedupeClaimed drops case-insensitive repeats, keeping the first spelling
func dedupeClaimed(claimed types.SkillList) types.SkillList {
	seen := make(map[string]bool, len(claimed))
	out := make(types.SkillList, 0, len(claimed))
	for _, s := range claimed {
		folded := types.FoldSkill(s)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, s)
	}
	return out
}

// Fallback matches skills by case-folded name. Each verified skill cites the
// demonstrated spelling it matched.
func Fallback(claimed, demonstrated types.SkillList) *types.VerificationResult {
	claimed = dedupeClaimed(claimed)

	demonstratedByFold := make(map[string]string, len(demonstrated))
	for _, s := range demonstrated {
		folded := types.FoldSkill(s)
		if _, ok := demonstratedByFold[folded]; !ok && folded != "" {
			demonstratedByFold[folded] = s
		}
	}

	result := emptyResult()
	claimedSet := make(map[string]bool, len(claimed))
	for _, skill := range claimed {
		folded := types.FoldSkill(skill)
		claimedSet[folded] = true
		if match, ok := demonstratedByFold[folded]; ok {
			result.VerifiedSkills = append(result.VerifiedSkills, types.VerifiedSkill{
				Skill:     skill,
				Evidence:  []string{match},
				Reasoning: FallbackReasoning,
			})
		} else {
			result.UnverifiedSkills = append(result.UnverifiedSkills, skill)
		}
	}

	result.AdditionalSkills = additional(demonstrated, claimedSet)
	result.VerificationPercentage = percentage(len(result.VerifiedSkills), len(claimed))
	result.Summary = FallbackSummary
	return result
}

// Reconcile forces an AI result to partition the claimed list: verified entries
// for unknown or repeated skills are dropped, claimed skills the AI skipped
// become unverified, additional skills exclude anything claimed, and the
// percentage is recomputed from the counts.
func Reconcile(ai *types.VerificationResult, claimed types.SkillList) *types.VerificationResult {
	claimed = dedupeClaimed(claimed)

	claimedByFold := make(map[string]string, len(claimed))
	claimedSet := make(map[string]bool, len(claimed))
	for _, s := range claimed {
		claimedByFold[types.FoldSkill(s)] = s
		claimedSet[types.FoldSkill(s)] = true
	}

	result := emptyResult()
	result.Summary = ai.Summary

	verified := map[string]bool{}
	for _, vs := range ai.VerifiedSkills {
		folded := types.FoldSkill(vs.Skill)
		original, ok := claimedByFold[folded]
		if !ok || verified[folded] {
			continue
		}
		verified[folded] = true
		evidence := vs.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		result.VerifiedSkills = append(result.VerifiedSkills, types.VerifiedSkill{
			Skill:     original,
			Evidence:  evidence,
			Reasoning: vs.Reasoning,
		})
	}

	for _, s := range claimed {
		if !verified[types.FoldSkill(s)] {
			result.UnverifiedSkills = append(result.UnverifiedSkills, s)
		}
	}

	result.AdditionalSkills = additional(ai.AdditionalSkills, claimedSet)
	result.VerificationPercentage = percentage(len(result.VerifiedSkills), len(claimed))
	return result
}

// ApplyStrength fills the strength metrics from the verified skills. Values keep
// full precision, like VerificationPercentage; rounding is left to presentation.
func ApplyStrength(result *types.VerificationResult, claimedCount int) {
	result.StrengthPerSkill = make(map[string]int, len(result.VerifiedSkills))
	total := 0
	for _, vs := range result.VerifiedSkills {
		strength := Strength(len(vs.Evidence))
		result.StrengthPerSkill[vs.Skill] = strength
		total += strength
	}

	result.AverageStrength = 0
	if n := len(result.VerifiedSkills); n > 0 {
		result.AverageStrength = float64(total) / float64(n)
	}

	countFactor := math.Min(100, float64(len(result.VerifiedSkills))/float64(max(claimedCount, 1))*100)
	result.ExperienceLevel = result.VerificationPercentage*0.7 + countFactor*0.3
}

// Strength scores one verified skill from its evidence count
func Strength(evidenceCount int) int {
	return min(maxStrength, baseStrength+evidenceCount)
}

func emptyResult() *types.VerificationResult {
	return &types.VerificationResult{
		VerifiedSkills:   []types.VerifiedSkill{},
		UnverifiedSkills: []string{},
		AdditionalSkills: []string{},
		StrengthPerSkill: map[string]int{},
	}
}

func additional(candidates []string, claimedSet map[string]bool) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range candidates {
		folded := types.FoldSkill(s)
		if folded == "" || claimedSet[folded] || seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, s)
	}
	return out
}

func percentage(verified, claimed int) float64 {
	if claimed == 0 {
		return 0
	}
	return float64(verified) / float64(claimed) * 100
}
