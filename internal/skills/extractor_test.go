package skills

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/types"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
	calls               atomic.Int32
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	m.calls.Add(1)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, opts)
	}
	return "[]", nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Provider() llm.Provider { return "mock" }

func (m *MockLLMClient) Close() error { return nil }

func replying(text string) *MockLLMClient {
	return &MockLLMClient{
		GenerateContentFunc: func(context.Context, string, llm.GenerateOptions) (string, error) {
			return text, nil
		},
	}
}

func TestParseSkillList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected types.SkillList
		ok       bool
	}{
		{"plain", `["Go", "Docker"]`, types.SkillList{"Go", "Docker"}, true},
		{"fenced", "```json\n[\"Go\"]\n```", types.SkillList{"Go"}, true},
		{"prose", "Sure! Here are the skills: [\"Python\", \"Django\"]. Let me know.", types.SkillList{"Python", "Django"}, true},
		{"wrapped object", `{"skills": ["Rust"]}`, types.SkillList{"Rust"}, true},
		{"drops blanks and duplicates", `["Go", " ", "Go", 3, "SQL "]`, types.SkillList{"Go", "SQL"}, true},
		{"empty array", `[]`, types.SkillList{}, true},
		{"garbage", "I cannot help with that", nil, false},
		{"unterminated", `["Go", "Docker"`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, ok := ParseSkillList(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, list)
		})
	}
}

func TestExtractResumeSkills_Success(t *testing.T) {
	var gotPrompt string
	var gotOpts llm.GenerateOptions
	client := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
			gotPrompt, gotOpts = prompt, opts
			return `["Go", "Docker"]`, nil
		},
	}
	e := NewExtractor(client, cache.NewMemoryStore(), nil, Options{})

	list, ok := e.ExtractResumeSkills(context.Background(), "Skills: Go and Docker", "fp1")
	assert.True(t, ok)
	assert.Equal(t, types.SkillList{"Go", "Docker"}, list)
	assert.Contains(t, gotPrompt, "Skills: Go and Docker")
	assert.InDelta(t, 0.1, gotOpts.Temperature, 0.0001)
	assert.Equal(t, llm.TierLite, gotOpts.Tier)
}

func TestExtractResumeSkills_TruncatesInput(t *testing.T) {
	var gotPrompt string
	client := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
			gotPrompt = prompt
			return `[]`, nil
		},
	}
	e := NewExtractor(client, nil, nil, Options{})

	text := strings.Repeat("a", ResumeSource.Budget) + "TAIL"
	e.ExtractResumeSkills(context.Background(), text, "fp")
	assert.NotContains(t, gotPrompt, "TAIL")
	assert.Contains(t, gotPrompt, strings.Repeat("a", ResumeSource.Budget))
}

func TestExtractSkills_CachesSuccess(t *testing.T) {
	client := replying(`["Go"]`)
	e := NewExtractor(client, cache.NewMemoryStore(), nil, Options{})

	e.ExtractResumeSkills(context.Background(), "text", "fp")
	list, ok := e.ExtractResumeSkills(context.Background(), "text", "fp")

	assert.True(t, ok)
	assert.Equal(t, types.SkillList{"Go"}, list)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestExtractSkills_FailureIsEmptyAndNotCached(t *testing.T) {
	var healthy atomic.Bool
	client := &MockLLMClient{
		GenerateContentFunc: func(context.Context, string, llm.GenerateOptions) (string, error) {
			if healthy.Load() {
				return `["Go"]`, nil
			}
			return "", errors.New("503 service unavailable")
		},
	}
	e := NewExtractor(client, cache.NewMemoryStore(), nil, Options{})

	list, ok := e.ExtractResumeSkills(context.Background(), "text", "fp")
	assert.False(t, ok)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	healthy.Store(true)
	list, ok = e.ExtractResumeSkills(context.Background(), "text", "fp")
	assert.True(t, ok)
	assert.Equal(t, types.SkillList{"Go"}, list)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestExtractSkills_UnparseableIsNotCached(t *testing.T) {
	client := replying("no idea")
	store := cache.NewMemoryStore()
	e := NewExtractor(client, store, nil, Options{})

	list, ok := e.ExtractResumeSkills(context.Background(), "text", "fp")
	assert.False(t, ok)
	assert.Empty(t, list)
	assert.Equal(t, 0, store.Len())
}

func TestExtractSkills_Timeout(t *testing.T) {
	client := &MockLLMClient{
		GenerateContentFunc: func(ctx context.Context, _ string, _ llm.GenerateOptions) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	e := NewExtractor(client, nil, nil, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	list, ok := e.ExtractResumeSkills(context.Background(), "text", "fp")
	assert.False(t, ok)
	assert.Empty(t, list)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExtractSkills_NilClient(t *testing.T) {
	e := NewExtractor(nil, nil, nil, Options{})

	list, ok := e.ExtractResumeSkills(context.Background(), "Go", "fp")
	assert.False(t, ok)
	assert.Empty(t, list)
}

func sampleSnapshot() *types.AccountSnapshot {
	return &types.AccountSnapshot{
		Username: "alice",
		Repositories: []types.RepositorySnapshot{
			{
				Name:          "api",
				Languages:     map[string]int{"Python": 200, "Go": 1000},
				Topics:        []string{"docker", "go"},
				ReadmeText:    strings.Repeat("r", 2000),
				RecentCommits: []types.CommitRef{{SHA: "1", Message: "add handler"}},
			},
			{
				Name:      "site",
				Languages: map[string]int{"TypeScript": 50},
				Topics:    []string{"react"},
			},
		},
	}
}

func TestExtractProfileSkills_CondensesSnapshot(t *testing.T) {
	var gotPrompt string
	client := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
			gotPrompt = prompt
			return `["Go", "Gin"]`, nil
		},
	}
	e := NewExtractor(client, nil, nil, Options{})

	list, ok := e.ExtractProfileSkills(context.Background(), sampleSnapshot())
	assert.True(t, ok)
	assert.Equal(t, types.SkillList{"Go", "Gin"}, list)
	assert.Contains(t, gotPrompt, `"readme_snippet": "`+strings.Repeat("r", ReadmeSnippetLength)+`"`)
	assert.NotContains(t, gotPrompt, strings.Repeat("r", ReadmeSnippetLength+1))
	assert.Contains(t, gotPrompt, "add handler")
}

func TestExtractProfileSkills_EmptySnapshotSkipsBackend(t *testing.T) {
	client := replying(`["Go"]`)
	e := NewExtractor(client, nil, nil, Options{})

	list, ok := e.ExtractProfileSkills(context.Background(), &types.AccountSnapshot{Username: "x"})
	assert.True(t, ok)
	assert.Empty(t, list)
	list, ok = e.ExtractProfileSkills(context.Background(), nil)
	assert.True(t, ok)
	assert.Empty(t, list)
	assert.Equal(t, int32(0), client.calls.Load())
}

func TestMergeDemonstrated(t *testing.T) {
	merged := MergeDemonstrated(types.SkillList{"Docker", "Gin"}, sampleSnapshot())

	// AI spelling of Docker wins over the topic
	assert.Equal(t, types.SkillList{"Docker", "Gin", "Go", "Python", "TypeScript", "react"}, merged)
}

func TestMergeDemonstrated_BackendDown(t *testing.T) {
	e := NewExtractor(nil, nil, nil, Options{})

	merged, complete := e.DemonstratedSkills(context.Background(), sampleSnapshot())
	assert.False(t, complete)
	assert.Equal(t, types.SkillList{"Go", "Python", "TypeScript", "docker", "react"}, merged)
}

func TestDemonstratedSkills_IncompleteSnapshot(t *testing.T) {
	e := NewExtractor(replying(`["Gin"]`), nil, nil, Options{})

	snap := sampleSnapshot()
	_, complete := e.DemonstratedSkills(context.Background(), snap)
	assert.True(t, complete)

	snap.Incomplete = true
	merged, complete := e.DemonstratedSkills(context.Background(), snap)
	assert.False(t, complete)
	assert.Equal(t, "Gin", merged[0])
}

func TestMergeDemonstrated_NilSnapshot(t *testing.T) {
	assert.Equal(t, types.SkillList{"Go"}, MergeDemonstrated(types.SkillList{"Go", "go"}, nil))
}
