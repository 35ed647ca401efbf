// Package skills asks the AI backend for the technical skills named in a resume
// or shown by a GitHub account, and resolves the account a resume points to.
package skills

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/prompts"
	"github.com/jonathan/skill-verifier/internal/types"
)

const (
	// DefaultTimeout bounds a single extraction call
	DefaultTimeout = 30 * time.Second
	// DefaultTTL is how long successful extractions stay cached
	DefaultTTL = time.Hour
)

// Source selects the prompt and input budget for one kind of text
type Source struct {
	Name      string
	PromptKey string
	// Budget is the maximum number of bytes of source text sent to the backend
	Budget int
}

var (
	// ResumeSource extracts claimed skills from resume text
	ResumeSource = Source{Name: "resume", PromptKey: prompts.KeyResumeSkills, Budget: 3000}
	// ProfileSource extracts demonstrated skills from a condensed account snapshot
	ProfileSource = Source{Name: "profile", PromptKey: prompts.KeyProfileSkills, Budget: 12000}
)

var errUnparseable = errors.New("response contained no skill list")

// Options tunes the extractor
type Options struct {
	Timeout time.Duration
	TTL     time.Duration
	Tier    llm.ModelTier
}

// Extractor turns free text into skill lists through an llm.Client.
// Failures are logged and yield empty lists; they are never cached.
type Extractor struct {
	client llm.Client
	store  cache.Store
	logger *zap.Logger
	opts   Options
}

// NewExtractor creates an extractor. client may be nil, in which case every
// AI-backed call yields an empty result.
func NewExtractor(client llm.Client, store cache.Store, logger *zap.Logger, opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierLite
	}
	return &Extractor{
		client: client,
		store:  store,
		logger: logging.Named(logger, "skills"),
		opts:   opts,
	}
}

// ExtractSkills prompts the backend with sourceText and parses a flat skill list
// from the reply. The result is cached under cacheKey on success only. The bool
// is false when the backend failed and the empty list stands in for an answer.
func (e *Extractor) ExtractSkills(ctx context.Context, source Source, sourceText, cacheKey string) (types.SkillList, bool) {
	list, err := cache.Load(ctx, e.store, e.logger, cacheKey, e.opts.TTL, func(ctx context.Context) (types.SkillList, error) {
		prompt, err := prompts.Render(prompts.SkillsFile, source.PromptKey, map[string]string{
			"Text": llm.Truncate(sourceText, source.Budget),
		})
		if err != nil {
			return nil, err
		}

		raw, err := e.generate(ctx, prompt, true)
		if err != nil {
			return nil, err
		}

		list, ok := ParseSkillList(raw)
		if !ok {
			e.logger.Debug("unparseable skill response", zap.String("response", logging.Truncate(raw, 200)))
			return nil, errUnparseable
		}
		return list, nil
	})
	if err != nil {
		fields := append(e.aiFields(), zap.String("source", source.Name), zap.Error(err))
		e.logger.Warn("skill extraction failed, using empty list", fields...)
		return types.SkillList{}, false
	}

	e.logger.Info("skills extracted", zap.String("source", source.Name), zap.Int("count", len(list)))
	return list, true
}

// ExtractResumeSkills extracts the skills a resume claims, keyed by the document fingerprint
func (e *Extractor) ExtractResumeSkills(ctx context.Context, text, fingerprint string) (types.SkillList, bool) {
	return e.ExtractSkills(ctx, ResumeSource, text, cache.DeriveKey("resume_skills", fingerprint))
}

func (e *Extractor) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if e.client == nil {
		return "", errors.New("no AI client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	return e.client.GenerateContent(ctx, prompt, llm.GenerateOptions{
		Tier:        e.opts.Tier,
		Temperature: llm.DefaultTemperature,
		JSON:        jsonMode,
	})
}

func (e *Extractor) aiFields() []zap.Field {
	if e.client == nil {
		return nil
	}
	return logging.AIFields(string(e.client.Provider()), e.client.GetModel(e.opts.Tier))
}

// ParseSkillList reads a skill array from a model reply. It accepts fenced JSON,
// an array buried in prose, or an object with a "skills" array. Non-string
// entries and blanks are dropped, as are exact duplicates.
func ParseSkillList(raw string) (types.SkillList, bool) {
	cleaned := llm.CleanJSONBlock(raw)
	if items, ok := decodeArray(cleaned); ok {
		return items, true
	}
	if arr := llm.FirstJSONArray(cleaned); arr != "" {
		if items, ok := decodeArray(arr); ok {
			return items, true
		}
	}
	if obj := llm.FirstJSONObject(cleaned); obj != "" {
		var wrapped struct {
			Skills json.RawMessage `json:"skills"`
		}
		if json.Unmarshal([]byte(obj), &wrapped) == nil && len(wrapped.Skills) > 0 {
			return decodeArray(string(wrapped.Skills))
		}
	}
	return nil, false
}

func decodeArray(text string) (types.SkillList, bool) {
	var items []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &items); err != nil {
		return nil, false
	}

	seen := make(map[string]bool, len(items))
	list := make(types.SkillList, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		list = append(list, s)
	}
	return list, true
}
