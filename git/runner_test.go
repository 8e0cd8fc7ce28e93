package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fwojciec/codeshell/git"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary git repository with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	writeFile(t, dir, "README.md", "# Test Repo\n")
	writeFile(t, dir, "old.txt", "old\n")
	writeFile(t, dir, "gone.txt", "gone\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "Initial commit")

	return dir
}

// runGit executes a git command in the given directory.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "command git %v failed: %s", args, string(output))
	return string(output)
}

// writeFile creates a file with the given content.
func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunner_TopLevel(t *testing.T) {
	t.Parallel()

	t.Run("returns the work tree root from a subdirectory", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)
		writeFile(t, dir, "sub/x.txt", "x\n")

		top, err := git.NewRunner().TopLevel(context.Background(), filepath.Join(dir, "sub"))

		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(top)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("fails outside a repository", func(t *testing.T) {
		t.Parallel()
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not installed")
		}

		_, err := git.NewRunner().TopLevel(context.Background(), t.TempDir())

		assert.Error(t, err)
	})
}

func TestRunner_ChangedFiles(t *testing.T) {
	t.Parallel()

	dir := setupTestRepo(t)
	writeFile(t, dir, "README.md", "# Changed\n")
	writeFile(t, dir, "src/new.go", "package src\n")
	runGit(t, dir, "mv", "old.txt", "renamed.txt")
	runGit(t, dir, "rm", "-q", "gone.txt")

	paths, err := git.NewRunner().ChangedFiles(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "renamed.txt", "src/new.go"}, paths)
}
