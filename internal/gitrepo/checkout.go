// Package gitrepo materializes branches and tags of a local clone into
// per-version build directories.
package gitrepo

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/deepankarm/docver/internal/logfields"
)

// Repo wraps an already-cloned repository on the local filesystem.
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

// refName resolves a version name to a fully qualified reference, preferring
// tags over branches (version names are usually tags).
func (r *Repo) refName(name string) (plumbing.ReferenceName, error) {
	tagRef := plumbing.NewTagReferenceName(name)
	if _, err := r.repo.Reference(tagRef, true); err == nil {
		return tagRef, nil
	}
	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(branchRef, true); err == nil {
		return branchRef, nil
	}
	return "", fmt.Errorf("no branch or tag named %q in %s", name, r.path)
}

// Materialize checks out the given branch or tag into dest. Any previous
// contents of dest are removed first. Conceptually this is a temporary
// worktree for a single version build.
func (r *Repo) Materialize(name, dest string) error {
	ref, err := r.refName(name)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clean checkout destination: %w", err)
	}

	slog.Debug("Materializing version checkout",
		logfields.Version(name), logfields.Path(dest), slog.String("ref", ref.String()))

	_, err = git.PlainClone(dest, false, &git.CloneOptions{
		URL:           r.path,
		ReferenceName: ref,
		SingleBranch:  true,
	})
	if err != nil {
		return fmt.Errorf("checkout %s into %s: %w", name, dest, err)
	}
	return nil
}
