// Package rdfind imports duplicate groups found by the rdfind tool.
package rdfind

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"dupsweep/internal/duplicate"
)

const (
	firstOccurrence = "DUPTYPE_FIRST_OCCURRENCE"
	dupTypePrefix   = "DUPTYPE_"

	// fields before the path: duptype id depth size device inode priority
	pathField = 7
)

var (
	// ErrMalformed reports a results line that cannot be parsed
	ErrMalformed = errors.New("malformed rdfind results")
)

// Runner invokes rdfind in dry-run mode and reads its results file.
type Runner struct {
	Binary   string
	Checksum string
	logger   *zap.Logger
}

func NewRunner(binary, checksum string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Binary: binary, Checksum: checksum, logger: logger}
}

// Run scans roots with rdfind and converts the results into a pool.
func (r *Runner) Run(ctx context.Context, roots []string) (*duplicate.Pool, error) {
	tmp, err := os.MkdirTemp("", "dupsweep-rdfind-")
	if err != nil {
		return nil, fmt.Errorf("rdfind: %w", err)
	}
	defer os.RemoveAll(tmp)

	output := filepath.Join(tmp, "results.txt")
	args := []string{
		"-followsymlinks", "false",
		"-checksum", r.Checksum,
		"-outputname", output,
		"-dryrun", "true",
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("rdfind: %w", err)
		}
		args = append(args, abs)
	}

	r.logger.Debug("running rdfind", zap.String("binary", r.Binary), zap.Strings("args", args))
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rdfind: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	f, err := os.Open(output)
	if err != nil {
		return nil, fmt.Errorf("rdfind results: %w", err)
	}
	defer f.Close()

	groups, err := Parse(f)
	if err != nil {
		return nil, err
	}
	pool := duplicate.NewPool(r.logger)
	for _, g := range groups {
		if err := pool.AddFromPaths(g); err != nil {
			return nil, fmt.Errorf("rdfind group %q: %w", g, err)
		}
	}
	r.logger.Info("rdfind results loaded", zap.Int("groups", pool.Len()))
	return pool, nil
}

// Parse reads an rdfind results file. Comment lines start with '#'; a
// DUPTYPE_FIRST_OCCURRENCE line opens a group and any other DUPTYPE_ line
// extends it. Paths may contain spaces.
func Parse(r io.Reader) ([][]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var groups [][]string
	var current []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !bytes.HasPrefix(line, []byte(dupTypePrefix)) {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformed, lineNo, line)
		}
		path, err := splitPath(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if bytes.HasPrefix(line, []byte(firstOccurrence)) {
			if len(current) > 0 {
				groups = append(groups, current)
			}
			current = []string{path}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("%w: line %d: duplicate before first occurrence", ErrMalformed, lineNo)
		}
		current = append(current, path)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rdfind results: %w", err)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

// splitPath returns everything after the seventh space.
func splitPath(line []byte) (string, error) {
	rest := line
	for i := 0; i < pathField; i++ {
		idx := bytes.IndexByte(rest, ' ')
		if idx < 0 {
			return "", fmt.Errorf("%w: %q has fewer than %d fields", ErrMalformed, line, pathField+1)
		}
		rest = rest[idx+1:]
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("%w: %q has an empty path", ErrMalformed, line)
	}
	return string(rest), nil
}
