// Package types provides type definitions for structured data used throughout the skill-verifier system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// AccountSnapshot is the assembled view of a source-hosting account used for skill inference.
// Repositories appear in the order the remote listed them.
type AccountSnapshot struct {
	Username     string               `json:"username"`
	Repositories []RepositorySnapshot `json:"repos"`
	UserInfo     *UserInfo            `json:"user_info,omitempty"`
	// Incomplete is set when a sub-fetch failed and left a field empty.
	// Incomplete snapshots are never cached, so the flag is not serialized.
	Incomplete bool `json:"-"`
}

// RepositorySnapshot holds everything fetched for one repository.
// Any field may hold its empty default when the corresponding sub-fetch failed.
type RepositorySnapshot struct {
	Name          string         `json:"name"`
	Languages     map[string]int `json:"languages"`
	Topics        []string       `json:"topics"`
	RecentCommits []CommitRef    `json:"commits"`
	ReadmeText    string         `json:"readme"`
	Description   string         `json:"description,omitempty"`
	StarCount     int            `json:"stars"`
	ForkCount     int            `json:"forks"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

// CommitRef is a trimmed commit reference
type CommitRef struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
}

// UserInfo is the public profile of the account owner
type UserInfo struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// LanguageStat aggregates one language across repositories
type LanguageStat struct {
	Name       string  `json:"name"`
	Bytes      int     `json:"bytes"`
	RepoCount  int     `json:"repo_count"`
	Percentage float64 `json:"percentage"`
}

// AccountLanguages is the account-wide language distribution, sorted by byte volume descending.
type AccountLanguages struct {
	Username             string         `json:"username"`
	TotalBytes           int            `json:"total_bytes"`
	Languages            []LanguageStat `json:"languages"`
	TopLanguages         []string       `json:"top_languages"`
	LanguageCount        int            `json:"language_count"`
	RepositoriesAnalyzed int            `json:"repositories_analyzed"`
}

// TechnologyStat counts the repositories tagged with one topic
type TechnologyStat struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AccountTechnologies is the account-wide topic distribution, sorted by count descending.
type AccountTechnologies struct {
	Username             string           `json:"username"`
	Technologies         []TechnologyStat `json:"technologies"`
	TopTechnologies      []string         `json:"top_technologies"`
	TechnologyCount      int              `json:"technology_count"`
	RepositoriesAnalyzed int              `json:"repositories_analyzed"`
}

// AccountSummary combines user info with both distributions
type AccountSummary struct {
	UserInfo             *UserInfo            `json:"user_info"`
	ProgrammingLanguages *AccountLanguages    `json:"programming_languages"`
	Technologies         *AccountTechnologies `json:"technologies"`
	TotalRepositories    int                  `json:"total_repositories"`
	RepositoriesAnalyzed int                  `json:"repositories_analyzed"`
}
