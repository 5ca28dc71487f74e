// Package gitctx derives the task-partitioning context from the git
// repository enclosing a working directory.
package gitctx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/quilltask/quill/internal/models"
)

// Sentinel errors for context resolution.
var (
	// ErrNotARepository means no enclosing git repository was found.
	// Callers fall back to models.None instead of failing the session.
	ErrNotARepository = errors.New("not inside a git repository")

	// ErrDetachedHead means HEAD does not point at a symbolic branch.
	ErrDetachedHead = errors.New("detached HEAD or unborn branch")
)

// PlaceholderBranch substitutes for the branch name when HEAD is detached
// or the branch is unborn.
const PlaceholderBranch = "(no-branch)"

// PlaceholderOrg substitutes for the organization when the repository has
// no remotes or the remote URL has no recognizable owner segment.
const PlaceholderOrg = "local"

// Resolve inspects the repository enclosing dir and returns its context.
// It is read-only and cheap enough to run on a render tick; callers
// debounce by comparing the previous result. The only failure is
// ErrNotARepository; a missing branch or remote degrades to placeholders.
func Resolve(dir string) (models.Context, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return models.None, fmt.Errorf("%w: %s", ErrNotARepository, dir)
		}
		return models.None, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no working directory to scope tasks to.
		return models.None, fmt.Errorf("%w: %s", ErrNotARepository, dir)
	}

	branch, err := currentBranch(repo)
	if errors.Is(err, ErrDetachedHead) {
		branch = PlaceholderBranch
	} else if err != nil {
		return models.None, err
	}

	return models.Context{
		Org:    orgFromRemotes(repo),
		Repo:   filepath.Base(wt.Filesystem.Root()),
		Branch: branch,
	}, nil
}

func currentBranch(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		// Unborn branch: HEAD exists but its target reference does not.
		return "", ErrDetachedHead
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// orgFromRemotes extracts the owner segment of the first configured remote
// URL, preferring "origin". Missing or unparsable remotes yield the
// placeholder rather than an error.
func orgFromRemotes(repo *git.Repository) string {
	remotes, err := repo.Remotes()
	if err != nil || len(remotes) == 0 {
		return PlaceholderOrg
	}

	var url string
	for _, r := range remotes {
		cfg := r.Config()
		if len(cfg.URLs) == 0 {
			continue
		}
		if cfg.Name == git.DefaultRemoteName {
			url = cfg.URLs[0]
			break
		}
		if url == "" {
			url = cfg.URLs[0]
		}
	}
	if url == "" {
		return PlaceholderOrg
	}

	if org, ok := orgFromURL(url); ok {
		return org
	}
	return PlaceholderOrg
}

// orgFromURL parses the owner out of the two accepted remote URL shapes:
// scp-style "git@host:ORG/REPO.git" and scheme-style
// "https://host/ORG/REPO" with an optional ".git" suffix.
func orgFromURL(url string) (string, bool) {
	var path string
	switch {
	case strings.Contains(url, "://"):
		rest := url[strings.Index(url, "://")+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", false
		}
		path = rest[slash+1:]
	case strings.Contains(url, "@") && strings.Contains(url, ":"):
		path = url[strings.Index(url, ":")+1:]
	default:
		return "", false
	}

	org, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if org == "" {
		return "", false
	}
	return org, true
}
