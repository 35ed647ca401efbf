package skills

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/types"
)

// ReadmeSnippetLength caps the README text sent per repository
const ReadmeSnippetLength = 500

type condensedRepo struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Languages      map[string]int `json:"languages"`
	Topics         []string       `json:"topics"`
	ReadmeSnippet  string         `json:"readme_snippet,omitempty"`
	CommitMessages []string       `json:"commit_messages,omitempty"`
}

type condensedProfile struct {
	Username string          `json:"username"`
	Repos    []condensedRepo `json:"repos"`
}

func condense(snapshot *types.AccountSnapshot) condensedProfile {
	profile := condensedProfile{Username: snapshot.Username, Repos: make([]condensedRepo, 0, len(snapshot.Repositories))}
	for _, repo := range snapshot.Repositories {
		messages := make([]string, 0, len(repo.RecentCommits))
		for _, c := range repo.RecentCommits {
			messages = append(messages, llm.Truncate(c.Message, 120))
		}
		profile.Repos = append(profile.Repos, condensedRepo{
			Name:           repo.Name,
			Description:    repo.Description,
			Languages:      repo.Languages,
			Topics:         repo.Topics,
			ReadmeSnippet:  llm.Truncate(repo.ReadmeText, ReadmeSnippetLength),
			CommitMessages: messages,
		})
	}
	return profile
}

// ExtractProfileSkills asks the backend which skills a snapshot demonstrates.
// The cache key covers the condensed snapshot, so changed repositories miss.
// An account without repositories demonstrates nothing, which is a complete answer.
func (e *Extractor) ExtractProfileSkills(ctx context.Context, snapshot *types.AccountSnapshot) (types.SkillList, bool) {
	if snapshot == nil || len(snapshot.Repositories) == 0 {
		return types.SkillList{}, true
	}

	profile := condense(snapshot)
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return types.SkillList{}, false
	}
	return e.ExtractSkills(ctx, ProfileSource, string(data), cache.DeriveKey("github_skills", snapshot.Username, profile))
}

// DemonstratedSkills is ExtractProfileSkills merged with the snapshot's own
// languages and topics, so an account still demonstrates something when the
// backend is unavailable. The bool is false when the backend failed or the
// snapshot itself is missing data.
func (e *Extractor) DemonstratedSkills(ctx context.Context, snapshot *types.AccountSnapshot) (types.SkillList, bool) {
	aiSkills, ok := e.ExtractProfileSkills(ctx, snapshot)
	complete := ok && (snapshot == nil || !snapshot.Incomplete)
	return MergeDemonstrated(aiSkills, snapshot), complete
}

// MergeDemonstrated returns aiSkills followed by every repository language
// (largest first) and topic not already present. Comparison is case-insensitive
// and the first spelling seen wins.
func MergeDemonstrated(aiSkills types.SkillList, snapshot *types.AccountSnapshot) types.SkillList {
	merged := make(types.SkillList, 0, len(aiSkills))
	seen := map[string]bool{}
	add := func(skill string) {
		folded := types.FoldSkill(skill)
		if folded == "" || seen[folded] {
			return
		}
		seen[folded] = true
		merged = append(merged, skill)
	}

	for _, s := range aiSkills {
		add(s)
	}
	if snapshot == nil {
		return merged
	}
	for _, repo := range snapshot.Repositories {
		for _, lang := range byBytes(repo.Languages) {
			add(lang)
		}
	}
	for _, repo := range snapshot.Repositories {
		for _, topic := range repo.Topics {
			add(topic)
		}
	}
	return merged
}

func byBytes(languages map[string]int) []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if languages[names[i]] != languages[names[j]] {
			return languages[names[i]] > languages[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
