// Package pipeline runs a full skill verification: resume text and GitHub
// profile in, a persisted, integrity-hashed verification record out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/db"
	"github.com/jonathan/skill-verifier/internal/document"
	"github.com/jonathan/skill-verifier/internal/integrity"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/types"
)

// Step names reported through progress events
const (
	StepExtractText    = "extract_text"
	StepResolveAccount = "resolve_account"
	StepResumeSkills   = "resume_skills"
	StepFetchProfile   = "fetch_profile"
	StepProfileSkills  = "profile_skills"
	StepVerify         = "verify_skills"
	StepPersist        = "persist"
)

// DefaultTTL is how long a complete verification is served from cache
const DefaultTTL = time.Hour

// ErrExtraction marks a document that could not be read
var ErrExtraction = errors.New("document extraction failed")

// ValidationError is a missing or unusable request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Request is one verification job
type Request struct {
	Document     []byte
	DocumentName string
	// Username is optional; it is resolved from the document when empty
	Username string
}

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// TextExtractor reads document text
type TextExtractor interface {
	ExtractText(doc []byte) (string, error)
}

// SkillSource extracts claimed and demonstrated skills. The bool results
// report whether the list is complete or an empty stand-in for a failed call.
type SkillSource interface {
	ExtractResumeSkills(ctx context.Context, text, fingerprint string) (types.SkillList, bool)
	DemonstratedSkills(ctx context.Context, snapshot *types.AccountSnapshot) (types.SkillList, bool)
	ResolveUsername(ctx context.Context, text, fingerprint string) (string, bool)
}

// ProfileSource fetches account snapshots
type ProfileSource interface {
	FetchSnapshot(ctx context.Context, username string, maxRepos int) (*types.AccountSnapshot, error)
}

// Matcher compares claimed and demonstrated skills. The bool is false when a
// fallback result stood in for the real comparison.
type Matcher interface {
	Verify(ctx context.Context, claimed, demonstrated types.SkillList) (*types.VerificationResult, bool)
}

// Dependencies are the components a Verifier drives
type Dependencies struct {
	Documents TextExtractor
	Skills    SkillSource
	Profiles  ProfileSource
	Matcher   Matcher
	Hasher    *integrity.Hasher
	Records   db.RecordStore
	// Cache holds complete verifications; nil disables it
	Cache  cache.Store
	Logger *zap.Logger
}

// Options tunes a Verifier
type Options struct {
	MaxRepos   int
	TTL        time.Duration
	OnProgress ProgressCallback
}

// Verifier orchestrates verification runs
type Verifier struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
}

// NewVerifier creates a Verifier
func NewVerifier(deps Dependencies, opts Options) *Verifier {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Verifier{deps: deps, opts: opts, logger: logging.Named(deps.Logger, "pipeline")}
}

// WithProgress returns a Verifier sharing v's components that reports to cb
func (v *Verifier) WithProgress(cb ProgressCallback) *Verifier {
	clone := *v
	clone.opts.OnProgress = cb
	return &clone
}

func (v *Verifier) emit(step, message string, content any) {
	if v.opts.OnProgress != nil {
		v.opts.OnProgress(ProgressEvent{Step: step, Message: message, Content: content})
	}
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9\-_]{0,38})$`)

// NormalizeUsername trims whitespace and a leading @ and checks the result
// is a plausible GitHub login
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !usernamePattern.MatchString(name) {
		return "", &ValidationError{Field: "github_username", Message: fmt.Sprintf("invalid GitHub username %q", raw)}
	}
	return name, nil
}

func fullKey(username, fingerprint string) string {
	return cache.DeriveKey("full_verification", username, fingerprint)
}

// Run verifies one resume. The returned record is persisted; on any error
// nothing is persisted. Only runs whose every stage completed are cached, so a
// run degraded by a failing backend is redone on the next request.
func (v *Verifier) Run(ctx context.Context, req Request) (*types.VerificationRecord, error) {
	if len(req.Document) == 0 {
		return nil, &ValidationError{Field: "resume_pdf", Message: "a resume document is required"}
	}

	fingerprint := document.Fingerprint(req.Document)
	username := ""
	if strings.TrimSpace(req.Username) != "" {
		name, err := NormalizeUsername(req.Username)
		if err != nil {
			return nil, err
		}
		username = name
		if record, ok := v.cached(ctx, username, fingerprint); ok {
			return record, nil
		}
	}

	var (
		claimed         types.SkillList
		claimedComplete bool
		snapshot        *types.AccountSnapshot
	)

	if username != "" {
		// the document and the profile are independent
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			text, err := v.extractText(req.Document)
			if err != nil {
				return err
			}
			claimed, claimedComplete = v.resumeSkills(gctx, text, fingerprint)
			return nil
		})
		g.Go(func() error {
			var err error
			snapshot, err = v.fetchProfile(gctx, username)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		text, err := v.extractText(req.Document)
		if err != nil {
			return nil, err
		}

		v.emit(StepResolveAccount, "Resolving GitHub account from resume", nil)
		name, ok := v.deps.Skills.ResolveUsername(ctx, text, fingerprint)
		if !ok {
			return nil, &ValidationError{Field: "github_username", Message: "no GitHub username provided or found in the resume"}
		}
		if username, err = NormalizeUsername(name); err != nil {
			return nil, err
		}
		if record, ok := v.cached(ctx, username, fingerprint); ok {
			return record, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			claimed, claimedComplete = v.resumeSkills(gctx, text, fingerprint)
			return nil
		})
		g.Go(func() error {
			var err error
			snapshot, err = v.fetchProfile(gctx, username)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	v.emit(StepProfileSkills, "Inferring skills from GitHub activity", nil)
	demonstrated, demonstratedComplete := v.deps.Skills.DemonstratedSkills(ctx, snapshot)
	v.emit(StepProfileSkills, fmt.Sprintf("Found %d demonstrated skills", len(demonstrated)), demonstrated)

	v.emit(StepVerify, "Comparing claimed and demonstrated skills", nil)
	result, resultComplete := v.deps.Matcher.Verify(ctx, claimed, demonstrated)
	v.emit(StepVerify, fmt.Sprintf("%.1f%% of claimed skills verified", result.VerificationPercentage), result)

	complete := claimedComplete && demonstratedComplete && resultComplete && !snapshot.Incomplete

	record := &types.VerificationRecord{
		SubjectUsername:     username,
		DocumentFingerprint: fingerprint,
		DocumentName:        req.DocumentName,
		ClaimedSkills:       claimed,
		DemonstratedSkills:  demonstrated,
		Result:              *result,
		IntegrityHash:       v.deps.Hasher.ComputeHash(username, result.VerifiedSkillNames()),
	}

	v.emit(StepPersist, "Saving verification record", nil)
	if _, err := v.deps.Records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save verification: %w", err)
	}

	switch {
	case v.deps.Cache == nil:
	case !complete:
		v.logger.Info("not caching degraded verification",
			zap.Bool("claimed_complete", claimedComplete),
			zap.Bool("demonstrated_complete", demonstratedComplete),
			zap.Bool("result_complete", resultComplete),
			zap.Bool("snapshot_complete", !snapshot.Incomplete))
	default:
		if err := cache.SetJSON(ctx, v.deps.Cache, fullKey(username, fingerprint), record, v.opts.TTL); err != nil {
			v.logger.Warn("failed to cache verification", zap.Error(err))
		}
	}

	v.logger.Info("verification complete",
		zap.Int64("verification_id", record.ID),
		zap.String(logging.FieldUsername, username),
		zap.Float64("percentage", result.VerificationPercentage),
		zap.Bool("complete", complete))
	return record, nil
}

func (v *Verifier) cached(ctx context.Context, username, fingerprint string) (*types.VerificationRecord, bool) {
	if v.deps.Cache == nil {
		return nil, false
	}
	var record types.VerificationRecord
	hit, err := cache.GetJSON(ctx, v.deps.Cache, fullKey(username, fingerprint), &record)
	if err != nil {
		v.logger.Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	if hit {
		v.logger.Debug("serving cached verification", zap.Int64("verification_id", record.ID))
	}
	return &record, hit
}

func (v *Verifier) extractText(doc []byte) (string, error) {
	v.emit(StepExtractText, "Extracting resume text", nil)
	text, err := v.deps.Documents.ExtractText(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return text, nil
}

func (v *Verifier) resumeSkills(ctx context.Context, text, fingerprint string) (types.SkillList, bool) {
	v.emit(StepResumeSkills, "Extracting skills from resume", nil)
	claimed, ok := v.deps.Skills.ExtractResumeSkills(ctx, text, fingerprint)
	v.emit(StepResumeSkills, fmt.Sprintf("Found %d claimed skills", len(claimed)), claimed)
	return claimed, ok
}

func (v *Verifier) fetchProfile(ctx context.Context, username string) (*types.AccountSnapshot, error) {
	v.emit(StepFetchProfile, "Fetching GitHub profile for "+username, nil)
	snapshot, err := v.deps.Profiles.FetchSnapshot(ctx, username, v.opts.MaxRepos)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub profile: %w", err)
	}
	v.emit(StepFetchProfile, fmt.Sprintf("Analyzed %d repositories", len(snapshot.Repositories)), nil)
	return snapshot, nil
}
