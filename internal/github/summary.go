package github

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/types"
)

const (
	topLanguagesLimit    = 5
	topTechnologiesLimit = 10
)

// AccountLanguages sums language bytes over the first maxRepos repositories.
// Languages are ordered by total bytes, descending; ties keep first-seen order.
func (a *Aggregator) AccountLanguages(ctx context.Context, username string, maxRepos int) (*types.AccountLanguages, error) {
	maxRepos = a.limit(maxRepos)
	key := cache.DeriveKey("account_languages", username, maxRepos)

	return loadComplete(ctx, a, key, func(ctx context.Context) (*types.AccountLanguages, error) {
		repos := a.selectRepos(ctx, username, maxRepos)
		perRepo := make([]map[string]int, len(repos))
		err := a.forEachRepo(ctx, repos, func(ctx context.Context, i int, repo Repository) {
			perRepo[i] = a.languages(ctx, username, repo.Name)
		})
		if err != nil {
			return nil, err
		}

		result := summarizeLanguages(username, perRepo)
		a.logger.Debug("account languages computed",
			zap.String(logging.FieldUsername, username),
			zap.Int("languages", result.LanguageCount))
		return result, nil
	})
}

func summarizeLanguages(username string, perRepo []map[string]int) *types.AccountLanguages {
	index := map[string]int{}
	stats := []types.LanguageStat{}
	total := 0

	for _, langs := range perRepo {
		for _, name := range languagesByVolume(langs) {
			pos, ok := index[name]
			if !ok {
				pos = len(stats)
				index[name] = pos
				stats = append(stats, types.LanguageStat{Name: name})
			}
			stats[pos].Bytes += langs[name]
			stats[pos].RepoCount++
			total += langs[name]
		}
	}

	for i := range stats {
		if total > 0 {
			stats[i].Percentage = round2(float64(stats[i].Bytes) / float64(total) * 100)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Bytes > stats[j].Bytes })

	top := make([]string, 0, topLanguagesLimit)
	for i := 0; i < len(stats) && i < topLanguagesLimit; i++ {
		top = append(top, stats[i].Name)
	}

	return &types.AccountLanguages{
		Username:             username,
		TotalBytes:           total,
		Languages:            stats,
		TopLanguages:         top,
		LanguageCount:        len(stats),
		RepositoriesAnalyzed: len(perRepo),
	}
}

// languagesByVolume fixes an iteration order for a per-repository language map,
// matching the bytes-descending order GitHub returns.
func languagesByVolume(langs map[string]int) []string {
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// AccountTechnologies counts how many of the first maxRepos repositories carry each topic.
// Topics are ordered by count, descending; ties keep first-seen order.
func (a *Aggregator) AccountTechnologies(ctx context.Context, username string, maxRepos int) (*types.AccountTechnologies, error) {
	maxRepos = a.limit(maxRepos)
	key := cache.DeriveKey("account_technologies", username, maxRepos)

	return loadComplete(ctx, a, key, func(ctx context.Context) (*types.AccountTechnologies, error) {
		repos := a.selectRepos(ctx, username, maxRepos)
		perRepo := make([][]string, len(repos))
		err := a.forEachRepo(ctx, repos, func(ctx context.Context, i int, repo Repository) {
			perRepo[i] = a.topics(ctx, username, repo.Name)
		})
		if err != nil {
			return nil, err
		}
		return summarizeTechnologies(username, perRepo), nil
	})
}

func summarizeTechnologies(username string, perRepo [][]string) *types.AccountTechnologies {
	index := map[string]int{}
	stats := []types.TechnologyStat{}

	for _, topics := range perRepo {
		for _, topic := range topics {
			pos, ok := index[topic]
			if !ok {
				pos = len(stats)
				index[topic] = pos
				stats = append(stats, types.TechnologyStat{Name: topic})
			}
			stats[pos].Count++
		}
	}

	analyzed := len(perRepo)
	for i := range stats {
		if analyzed > 0 {
			stats[i].Percentage = round2(float64(stats[i].Count) / float64(analyzed) * 100)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })

	top := make([]string, 0, topTechnologiesLimit)
	for i := 0; i < len(stats) && i < topTechnologiesLimit; i++ {
		top = append(top, stats[i].Name)
	}

	return &types.AccountTechnologies{
		Username:             username,
		Technologies:         stats,
		TopTechnologies:      top,
		TechnologyCount:      len(stats),
		RepositoriesAnalyzed: analyzed,
	}
}

// AccountSummary combines user info with the language and technology distributions
func (a *Aggregator) AccountSummary(ctx context.Context, username string, maxRepos int) (*types.AccountSummary, error) {
	maxRepos = a.limit(maxRepos)
	key := cache.DeriveKey("account_summary", username, maxRepos)

	return loadComplete(ctx, a, key, func(ctx context.Context) (*types.AccountSummary, error) {
		languages, err := a.AccountLanguages(ctx, username, maxRepos)
		if err != nil {
			return nil, err
		}
		technologies, err := a.AccountTechnologies(ctx, username, maxRepos)
		if err != nil {
			return nil, err
		}
		total := len(a.repos(ctx, username))

		return &types.AccountSummary{
			UserInfo:             a.userInfo(ctx, username),
			ProgrammingLanguages: languages,
			Technologies:         technologies,
			TotalRepositories:    total,
			RepositoriesAnalyzed: min(total, maxRepos),
		}, nil
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
