package github

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/types"
)

// Options tunes the aggregator
type Options struct {
	// MaxRepos is used when a call passes maxRepos <= 0
	MaxRepos int
	// Concurrency bounds the repositories fetched at once
	Concurrency int
	// CommitsPerRepo is the page size for recent commits
	CommitsPerRepo int
	// TTL applies to every cached fetch and summary
	TTL time.Duration
}

// DefaultOptions returns the aggregator defaults
func DefaultOptions() Options {
	return Options{
		MaxRepos:       5,
		Concurrency:    4,
		CommitsPerRepo: 10,
		TTL:            30 * time.Minute,
	}
}

// Aggregator assembles account snapshots from an API, caching each fetch
type Aggregator struct {
	api    API
	store  cache.Store
	logger *zap.Logger
	opts   Options
}

// NewAggregator creates an aggregator. A nil store disables caching.
func NewAggregator(api API, store cache.Store, logger *zap.Logger, opts Options) *Aggregator {
	defaults := DefaultOptions()
	if opts.MaxRepos <= 0 {
		opts.MaxRepos = defaults.MaxRepos
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.CommitsPerRepo <= 0 {
		opts.CommitsPerRepo = defaults.CommitsPerRepo
	}
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	return &Aggregator{
		api:    api,
		store:  store,
		logger: logging.Named(logger, "github"),
		opts:   opts,
	}
}

func (a *Aggregator) limit(maxRepos int) int {
	if maxRepos <= 0 {
		return a.opts.MaxRepos
	}
	return maxRepos
}

// FetchSnapshot returns the first maxRepos repositories of an account with their
// languages, recent commits, README and topics, plus the owner's profile. A failed
// sub-fetch leaves its field empty and never drops the repository. The only error
// is cancellation. A snapshot with failed sub-fetches is marked Incomplete and
// is returned but not cached.
func (a *Aggregator) FetchSnapshot(ctx context.Context, username string, maxRepos int) (*types.AccountSnapshot, error) {
	maxRepos = a.limit(maxRepos)
	key := cache.DeriveKey("account_snapshot", username, maxRepos)

	return cache.LoadIf(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) (*types.AccountSnapshot, bool, error) {
		ctx, c := trackCompleteness(ctx)
		g, gctx := errgroup.WithContext(ctx)

		var info *types.UserInfo
		g.Go(func() error {
			info = a.userInfo(gctx, username)
			return nil
		})

		repos := a.selectRepos(gctx, username, maxRepos)
		a.logger.Info("fetching account snapshot",
			zap.String(logging.FieldUsername, username),
			zap.Int("repositories", len(repos)))

		snapshots := make([]types.RepositorySnapshot, len(repos))
		g.Go(func() error {
			return a.forEachRepo(gctx, repos, func(ctx context.Context, i int, repo Repository) {
				snapshots[i] = a.repositorySnapshot(ctx, username, repo)
			})
		})
		if err := g.Wait(); err != nil {
			return nil, false, err
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		snapshot := &types.AccountSnapshot{
			Username:     username,
			UserInfo:     info,
			Repositories: snapshots,
			Incomplete:   c.incomplete.Load(),
		}
		return snapshot, !snapshot.Incomplete, nil
	})
}

func (a *Aggregator) repositorySnapshot(ctx context.Context, username string, repo Repository) types.RepositorySnapshot {
	return types.RepositorySnapshot{
		Name:          repo.Name,
		Languages:     a.languages(ctx, username, repo.Name),
		Topics:        a.topics(ctx, username, repo.Name),
		RecentCommits: a.commits(ctx, username, repo.Name),
		ReadmeText:    a.readme(ctx, username, repo.Name),
		Description:   repo.Description,
		StarCount:     repo.StargazersCount,
		ForkCount:     repo.ForksCount,
		CreatedAt:     repo.CreatedAt,
		UpdatedAt:     repo.UpdatedAt,
	}
}

// forEachRepo runs fn for every repository with bounded concurrency.
// Results must be written by index so listing order survives.
func (a *Aggregator) forEachRepo(ctx context.Context, repos []Repository, fn func(ctx context.Context, i int, repo Repository)) error {
	sem := semaphore.NewWeighted(int64(a.opts.Concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			fn(gctx, i, repo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// repos returns the full listing, or nil when it cannot be fetched
func (a *Aggregator) repos(ctx context.Context, username string) []Repository {
	key := cache.DeriveKey("user_repos", username)
	repos, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) ([]Repository, error) {
		return a.api.ListRepos(ctx, username)
	})
	if err != nil {
		a.softFailure(ctx, "list repositories", username, "", err)
		return nil
	}
	return repos
}

func (a *Aggregator) selectRepos(ctx context.Context, username string, maxRepos int) []Repository {
	repos := a.repos(ctx, username)
	if len(repos) > maxRepos {
		repos = repos[:maxRepos]
	}
	return repos
}

func (a *Aggregator) languages(ctx context.Context, username, repo string) map[string]int {
	key := cache.DeriveKey("repo_languages", username, repo)
	langs, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) (map[string]int, error) {
		return a.api.GetLanguages(ctx, username, repo)
	})
	if err != nil || langs == nil {
		a.softFailure(ctx, "languages", username, repo, err)
		return map[string]int{}
	}
	return langs
}

func (a *Aggregator) commits(ctx context.Context, username, repo string) []types.CommitRef {
	key := cache.DeriveKey("repo_commits", username, repo, a.opts.CommitsPerRepo)
	commits, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) ([]types.CommitRef, error) {
		return a.api.GetCommits(ctx, username, repo, a.opts.CommitsPerRepo)
	})
	if err != nil || commits == nil {
		a.softFailure(ctx, "commits", username, repo, err)
		return []types.CommitRef{}
	}
	return commits
}

func (a *Aggregator) readme(ctx context.Context, username, repo string) string {
	key := cache.DeriveKey("repo_readme", username, repo)
	text, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) (string, error) {
		return a.api.GetReadme(ctx, username, repo)
	})
	if err != nil {
		a.softFailure(ctx, "readme", username, repo, err)
		return ""
	}
	return text
}

func (a *Aggregator) topics(ctx context.Context, username, repo string) []string {
	key := cache.DeriveKey("repo_topics", username, repo)
	topics, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) ([]string, error) {
		return a.api.GetTopics(ctx, username, repo)
	})
	if err != nil || topics == nil {
		a.softFailure(ctx, "topics", username, repo, err)
		return []string{}
	}
	return topics
}

func (a *Aggregator) userInfo(ctx context.Context, username string) *types.UserInfo {
	key := cache.DeriveKey("user_info", username)
	info, err := cache.Load(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) (*types.UserInfo, error) {
		return a.api.GetUser(ctx, username)
	})
	if err != nil {
		a.softFailure(ctx, "user info", username, "", err)
		return nil
	}
	return info
}

// softFailure logs a fetch that fell back to an empty value and marks the
// enclosing loads incomplete. A 404 is an answer, not a failure: a repository
// without a README or an unknown account stays cacheable.
func (a *Aggregator) softFailure(ctx context.Context, what, username, repo string, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{zap.String(logging.FieldUsername, username), zap.Error(err)}
	if repo != "" {
		fields = append(fields, zap.String(logging.FieldRepo, repo))
	}
	if isNotFound(err) {
		a.logger.Debug("github resource not found, using empty "+what, fields...)
		return
	}
	markIncomplete(ctx)
	a.logger.Warn("github fetch failed, using empty "+what, fields...)
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type completenessKey struct{}

// completeness records whether any fetch under a load fell back to an empty
// value. Marks propagate to enclosing loads so a summary built from an
// incomplete distribution is incomplete too.
type completeness struct {
	parent     *completeness
	incomplete atomic.Bool
}

func trackCompleteness(ctx context.Context) (context.Context, *completeness) {
	parent, _ := ctx.Value(completenessKey{}).(*completeness)
	c := &completeness{parent: parent}
	return context.WithValue(ctx, completenessKey{}, c), c
}

func markIncomplete(ctx context.Context) {
	c, _ := ctx.Value(completenessKey{}).(*completeness)
	for ; c != nil; c = c.parent {
		c.incomplete.Store(true)
	}
}

// loadComplete is cache.Load for aggregate results: the value is cached only
// when every fetch beneath it succeeded, so a transient failure is retried on
// the next call instead of being served for the full TTL.
func loadComplete[T any](ctx context.Context, a *Aggregator, key string, fn func(context.Context) (T, error)) (T, error) {
	return cache.LoadIf(ctx, a.store, a.logger, key, a.opts.TTL, func(ctx context.Context) (T, bool, error) {
		ctx, c := trackCompleteness(ctx)
		value, err := fn(ctx)
		return value, !c.incomplete.Load(), err
	})
}
