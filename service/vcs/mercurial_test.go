package vcs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gosh/runner"
)

type fakeRunner struct {
	commands []string
	outputs  map[string]string
	status   int
}

func (r *fakeRunner) Run(_ context.Context, command string, _ ...runner.Option) (string, int, error) {
	r.commands = append(r.commands, command)
	for fragment, output := range r.outputs {
		if strings.Contains(command, fragment) {
			return output, r.status, nil
		}
	}
	return "", r.status, nil
}

const (
	nodeA = "0123456789abcdef0123456789abcdef01234567"
	nodeB = "89abcdef0123456789abcdef0123456789abcdef"
)

func TestMercurial_Range(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"log": "warning: something\n" + nodeA + "\n" + nodeB + "\n"}}
	hg := New(r, "")
	nodes, err := hg.Range(context.Background(), "/src/mc", "abc", "def")
	assert.NoError(t, err)
	assert.Equal(t, []string{nodeA, nodeB}, nodes)
	assert.Equal(t, []string{"hg -R '/src/mc' log -r 'abc:def' --template '{node}\\n'"}, r.commands)
}

func TestMercurial_Resolve(t *testing.T) {
	testCases := []struct {
		description string
		revision    string
		output      string
		status      int
		expect      string
		expectErr   bool
	}{
		{description: "full revision is returned as is", revision: nodeA, expect: nodeA},
		{description: "abbreviated revision", revision: "0123456789ab", output: nodeA + "\n", expect: nodeA},
		{description: "unknown revision", revision: "ffff", output: "", expectErr: true},
		{description: "hg failure", revision: "ffff", output: "abort: unknown revision", status: 255, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			r := &fakeRunner{outputs: map[string]string{"log": tc.output}, status: tc.status}
			actual, err := New(r, "hg").Resolve(context.Background(), "/src/mc", tc.revision)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func TestMercurial_CommitTime(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"hgdate": "1325376000 -3600"}}
	actual, err := New(r, "hg").CommitTime(context.Background(), "/src/mc", nodeA)
	assert.NoError(t, err)
	assert.Equal(t, int64(1325376000), actual.Unix())
}
