package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/prompts"
	"github.com/jonathan/skill-verifier/internal/types"
)

const (
	// DefaultTimeout bounds the AI matching call
	DefaultTimeout = 45 * time.Second
	// DefaultTTL is how long AI results stay cached
	DefaultTTL = time.Hour

	matchTemperature float32 = 0.2
)

// Options tunes the engine
type Options struct {
	Timeout time.Duration
	TTL     time.Duration
	Tier    llm.ModelTier
}

// Engine verifies claimed skills against demonstrated ones
type Engine struct {
	client llm.Client
	store  cache.Store
	logger *zap.Logger
	opts   Options
}

// NewEngine creates an engine. A nil client always uses the deterministic match.
func NewEngine(client llm.Client, store cache.Store, logger *zap.Logger, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	return &Engine{
		client: client,
		store:  store,
		logger: logging.Named(logger, "verification"),
		opts:   opts,
	}
}

// errFallback carries a deterministic result out of cache.Load so it is
// returned without being cached
type errFallback struct {
	result *types.VerificationResult
	reason string
	// complete is set when the deterministic result is the final answer
	// rather than a stand-in for a failed backend call
	complete bool
}

func (e *errFallback) Error() string {
	return "fallback: " + e.reason
}

// Verify compares the two lists. It always returns a result whose verified and
// unverified skills partition the claimed list. The bool is false when the
// deterministic match stood in for an unavailable or malformed backend reply.
func (e *Engine) Verify(ctx context.Context, claimed, demonstrated types.SkillList) (*types.VerificationResult, bool) {
	claimed = dedupeClaimed(claimed)
	key := cache.DeriveKey("verify_skills", cache.Unordered(claimed), cache.Unordered(demonstrated))

	result, err := cache.Load(ctx, e.store, e.logger, key, e.opts.TTL, func(ctx context.Context) (*types.VerificationResult, error) {
		if len(claimed) == 0 {
			fb := e.fallback(claimed, demonstrated, "no claimed skills")
			fb.complete = true
			return nil, fb
		}
		if e.client == nil {
			return nil, e.fallback(claimed, demonstrated, "no AI client configured")
		}

		raw, err := e.match(ctx, claimed, demonstrated)
		if err != nil {
			return nil, e.fallback(claimed, demonstrated, err.Error())
		}

		outcome := Parse(raw)
		if outcome.Malformed {
			e.logger.Debug("malformed verification response", zap.String("response", logging.Truncate(raw, 300)))
			return nil, e.fallback(claimed, demonstrated, "malformed response: "+outcome.Reason)
		}

		result := Reconcile(outcome.Result, claimed)
		ApplyStrength(result, len(claimed))
		return result, nil
	})

	var fb *errFallback
	if errors.As(err, &fb) {
		e.logger.Info("using deterministic skill match", zap.String("reason", fb.reason))
		return fb.result, fb.complete
	}
	if err != nil {
		// only the cache loader can get here, and it never fails on its own
		return e.fallback(claimed, demonstrated, err.Error()).result, false
	}

	e.logger.Info("skills verified",
		zap.Int("claimed", len(claimed)),
		zap.Int("verified", len(result.VerifiedSkills)),
		zap.Float64("percentage", result.VerificationPercentage))
	return result, true
}

func (e *Engine) fallback(claimed, demonstrated types.SkillList, reason string) *errFallback {
	result := Fallback(claimed, demonstrated)
	ApplyStrength(result, len(claimed))
	return &errFallback{result: result, reason: reason}
}

func (e *Engine) match(ctx context.Context, claimed, demonstrated types.SkillList) (string, error) {
	claimedJSON, err := json.Marshal(claimed)
	if err != nil {
		return "", err
	}
	demonstratedJSON, err := json.Marshal(demonstrated)
	if err != nil {
		return "", err
	}

	prompt, err := prompts.Render(prompts.VerificationFile, prompts.KeyVerifySkills, map[string]string{
		"ClaimedSkills":      string(claimedJSON),
		"DemonstratedSkills": string(demonstratedJSON),
	})
	if err != nil {
		return "", err
	}
	system, err := prompts.Get(prompts.VerificationFile, prompts.KeyVerifySystem)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	raw, err := e.client.GenerateContent(ctx, prompt, llm.GenerateOptions{
		Tier:        e.opts.Tier,
		Temperature: matchTemperature,
		System:      system,
		JSON:        true,
	})
	if err != nil {
		fields := append(logging.AIFields(string(e.client.Provider()), e.client.GetModel(e.opts.Tier)), zap.Error(err))
		e.logger.Warn("AI skill matching failed", fields...)
		return "", fmt.Errorf("AI skill matching failed: %w", err)
	}
	return raw, nil
}
