package sources

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// GitCloner clones remote sources with the git CLI
type GitCloner struct {
	binary string
}

// NewGitCloner creates a cloner using the git binary on PATH
func NewGitCloner() *GitCloner {
	return &GitCloner{binary: "git"}
}

// Clone performs a shallow clone of loc into dest and strips the .git directory
func (g *GitCloner) Clone(ctx context.Context, loc Location, dest string) error {
	if _, err := exec.LookPath(g.binary); err != nil {
		return errors.Wrap(err, "git is not installed")
	}

	args := []string{"clone", "--depth", "1"}
	if loc.Ref != "" {
		args = append(args, "--branch", loc.Ref)
	}
	args = append(args, "--", loc.URL, dest)

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "failed to clone repository: %s", string(output))
	}

	return errors.Wrap(os.RemoveAll(filepath.Join(dest, ".git")), "failed to clean clone")
}
