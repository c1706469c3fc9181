// Package git provides repository detection and author resolution.
package git

import (
	"errors"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
)

// GitInfo contains information about a git repository
//
//nolint:revive // GitInfo is intentionally prefixed to avoid overly generic "Info" type
type GitInfo struct {
	IsGitRepo     bool
	Root          string
	CurrentBranch string
}

// DefaultAuthor is used when no other identity can be found.
const DefaultAuthor = "anonymous"

// GetGitInfo retrieves git repository information for the given directory.
// If dir is empty, it uses the current working directory.
// Returns a GitInfo with IsGitRepo=false if the directory is not a git repository.
func GetGitInfo(dir string) (*GitInfo, error) {
	repo, err := open(dir)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return &GitInfo{IsGitRepo: false}, nil
		}
		return nil, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to anchor documents in.
		//nolint:nilerr // Intentionally return non-repo info instead of error
		return &GitInfo{IsGitRepo: false}, nil
	}

	info := &GitInfo{
		IsGitRepo: true,
		Root:      worktree.Filesystem.Root(),
	}

	// An unborn HEAD (no commits yet) leaves the branch empty.
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		info.CurrentBranch = head.Name().Short()
	}

	return info, nil
}

// ResolveAuthor picks the identity used for new comments and reactions:
// the configured author, then git user.name (repository, then global), then
// user.email, then $USER.
func ResolveAuthor(dir, configured string) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}

	if cfg := loadUserConfig(dir); cfg != nil {
		if name := strings.TrimSpace(cfg.User.Name); name != "" {
			return name
		}
		if email := strings.TrimSpace(cfg.User.Email); email != "" {
			return email
		}
	}

	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return DefaultAuthor
}

func loadUserConfig(dir string) *gitconfig.Config {
	if repo, err := open(dir); err == nil {
		if cfg, err := repo.ConfigScoped(gitconfig.GlobalScope); err == nil {
			return cfg
		}
	}
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err != nil {
		return nil
	}
	return cfg
}

func open(dir string) (*gogit.Repository, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, gogit.ErrRepositoryNotExists
		}
		dir = wd
	}
	return gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}
