package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// tool is an external command-line program located by path or name.
type tool string

func (t tool) available() bool {
	if t == "" {
		return false
	}
	_, err := exec.LookPath(string(t))
	return err == nil
}

func (t tool) name() string {
	return filepath.Base(string(t))
}

// run executes the tool in dir and returns its stdout.
func (t tool) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, string(t), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", t.name(), ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %s", t.name(), err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// withWorkDir runs fn inside a fresh temporary directory that is removed
// afterwards, so no converted bytes outlive the call on disk.
func withWorkDir[Out any](fn func(dir string) (Out, error)) (Out, error) {
	var zero Out
	dir, err := os.MkdirTemp("", "pagecraft-*")
	if err != nil {
		return zero, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

func writeInput(dir, name string, content []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write input: %w", err)
	}
	return path, nil
}

// readMatches reads every file in dir matching pattern in lexical order.
func readMatches(dir, pattern string) ([][]byte, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob outputs: %w", err)
	}
	sort.Strings(paths)

	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read output: %w", err)
		}
		out = append(out, data)
	}
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
