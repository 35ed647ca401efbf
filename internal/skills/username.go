package skills

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/prompts"
)

// UsernameTextBudget caps the resume text sent when asking the backend for a username
const UsernameTextBudget = 2000

var (
	profileURLPattern = regexp.MustCompile(`(?i)github\.com/([a-zA-Z0-9\-_]+)`)
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9\-_]{0,38})$`)

	errNoUsername = errors.New("no username found")
)

// github.com paths that are not accounts
var reservedPaths = map[string]bool{
	"orgs": true, "about": true, "features": true, "pricing": true,
	"login": true, "settings": true, "topics": true, "sponsors": true,
}

// UsernameFromURL returns the first account named in a github.com URL in text
func UsernameFromURL(text string) (string, bool) {
	for _, m := range profileURLPattern.FindAllStringSubmatch(text, -1) {
		if !reservedPaths[strings.ToLower(m[1])] {
			return m[1], true
		}
	}
	return "", false
}

// ResolveUsername finds the GitHub account a resume refers to: a profile URL
// first, then the AI backend. Resolved names are cached by document fingerprint.
func (e *Extractor) ResolveUsername(ctx context.Context, text, fingerprint string) (string, bool) {
	key := cache.DeriveKey("github_username", fingerprint)
	username, err := cache.Load(ctx, e.store, e.logger, key, e.opts.TTL, func(ctx context.Context) (string, error) {
		if name, ok := UsernameFromURL(text); ok {
			return name, nil
		}

		prompt, err := prompts.Render(prompts.SkillsFile, prompts.KeyUsername, map[string]string{
			"Text": llm.Truncate(text, UsernameTextBudget),
		})
		if err != nil {
			return "", err
		}
		raw, err := e.generate(ctx, prompt, false)
		if err != nil {
			return "", err
		}
		if name, ok := parseUsername(raw); ok {
			return name, nil
		}
		return "", errNoUsername
	})
	if err != nil {
		if !errors.Is(err, errNoUsername) {
			e.logger.Warn("username resolution failed", append(e.aiFields(), zap.Error(err))...)
		}
		return "", false
	}

	e.logger.Debug("username resolved", zap.String(logging.FieldUsername, username))
	return username, true
}

// parseUsername accepts a bare username, an @mention or a profile URL
func parseUsername(raw string) (string, bool) {
	s := strings.TrimSpace(llm.CleanJSONBlock(raw))
	if name, ok := UsernameFromURL(s); ok {
		return name, true
	}
	s = strings.Trim(s, "\"'`@ \n\t.")
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") || len(s) <= 2 {
		return "", false
	}
	if !usernamePattern.MatchString(s) {
		return "", false
	}
	return strings.ToLower(s), true
}
