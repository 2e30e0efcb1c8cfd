package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.txt")
	assert.NoError(t, Init("batchtester", "0.0.1", fname))

	_, span := StartSpan(context.Background(), "prepare", map[string]string{"build.kind": "nightly"})
	span.End(errors.New("download failed"))

	data, err := os.ReadFile(fname)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "prepare")
	assert.Contains(t, string(data), "download failed")
}

func TestSpan_Nil(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithAttributes(map[string]string{"k": "v"}))
	span.End(nil)
}
