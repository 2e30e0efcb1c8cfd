package vcs

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/viant/batchtester/service/shell"
)

// FullRevisionLength is the length of a canonical changeset id
const FullRevisionLength = 40

var nodeExpr = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsFull returns true when revision is a canonical changeset id
func IsFull(revision string) bool {
	return nodeExpr.MatchString(revision)
}

// Mercurial resolves revisions in a local hg repository
type Mercurial struct {
	runner shell.Runner
	binary string
}

// New creates a Mercurial client; binary defaults to "hg"
func New(runner shell.Runner, binary string) *Mercurial {
	if binary == "" {
		binary = "hg"
	}
	return &Mercurial{runner: runner, binary: binary}
}

// Pull updates the repository from its default remote
func (m *Mercurial) Pull(ctx context.Context, repo string) error {
	if repo == "" {
		return fmt.Errorf("repository was empty")
	}
	_, err := shell.Exec(ctx, m.runner, fmt.Sprintf("%s -R %s pull", m.binary, shell.Quote(repo)))
	return err
}

// Update checks out revision, discarding local changes
func (m *Mercurial) Update(ctx context.Context, repo, revision string) error {
	_, err := shell.Exec(ctx, m.runner, fmt.Sprintf("%s -R %s update -C -r %s", m.binary, shell.Quote(repo), shell.Quote(revision)))
	return err
}

// Range returns full changeset ids from first to last, inclusive, in repository order
func (m *Mercurial) Range(ctx context.Context, repo, first, last string) ([]string, error) {
	if repo == "" {
		return nil, fmt.Errorf("repository was empty")
	}
	if last == "" {
		last = first
	}
	command := fmt.Sprintf("%s -R %s log -r %s --template '{node}\\n'", m.binary, shell.Quote(repo), shell.Quote(first+":"+last))
	output, err := shell.Exec(ctx, m.runner, command)
	if err != nil {
		return nil, err
	}
	return scanNodes(output), nil
}

// Resolve expands a possibly abbreviated revision into its full id
func (m *Mercurial) Resolve(ctx context.Context, repo, revision string) (string, error) {
	if IsFull(revision) {
		return revision, nil
	}
	nodes, err := m.Range(ctx, repo, revision, revision)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("revision %v not found in %v", revision, repo)
	}
	return nodes[0], nil
}

// CommitTime returns the commit time of revision
func (m *Mercurial) CommitTime(ctx context.Context, repo, revision string) (time.Time, error) {
	command := fmt.Sprintf("%s -R %s log -r %s --template '{date|hgdate}'", m.binary, shell.Quote(repo), shell.Quote(revision))
	output, err := shell.Exec(ctx, m.runner, command)
	if err != nil {
		return time.Time{}, err
	}
	return parseHgDate(output)
}

// scanNodes collects changeset ids from hg log output, ignoring any other lines
func scanNodes(output string) []string {
	var nodes []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if nodeExpr.MatchString(line) {
			nodes = append(nodes, line)
		}
	}
	return nodes
}

// parseHgDate parses "<unixtime> <offset>"
func parseHgDate(output string) (time.Time, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty hg date")
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hg date %q: %w", output, err)
	}
	return time.Unix(int64(seconds), 0), nil
}
