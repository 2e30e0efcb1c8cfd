package source

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/batchtester/model/build"
)

// Factory creates sources for every build kind
type Factory struct {
	Archive *Archive
	Builder *Builder
	// Compile holds repo, mozconfig, objdir and pull settings used for restored compile builds
	Compile CompileSpec
	LogDir  string
}

// Nightly creates a nightly source
func (f *Factory) Nightly(date time.Time) build.Source {
	return NewNightly(f.Archive, date)
}

// Tinderbox creates a tinderbox source
func (f *Factory) Tinderbox(timestamp int64) build.Source {
	return NewTinderbox(f.Archive, timestamp)
}

// Compiled creates a compile source for commit using spec's checkout settings
func (f *Factory) Compiled(spec CompileSpec, commit string) build.Source {
	spec.Commit = commit
	spec.LogFile = BuildLogFile(f.LogDir, commit)
	return f.Builder.New(spec)
}

// Restore implements build.Factory
func (f *Factory) Restore(record *build.Record) (build.Source, error) {
	switch record.Type {
	case build.KindNightly:
		if f.Archive == nil {
			return nil, fmt.Errorf("archive was not configured")
		}
		date, err := time.Parse(build.DateLayout, record.For)
		if err != nil {
			return nil, fmt.Errorf("invalid nightly date %q: %w", record.For, err)
		}
		return f.Nightly(date), nil
	case build.KindTinderbox:
		if f.Archive == nil {
			return nil, fmt.Errorf("archive was not configured")
		}
		if record.Timestamp <= 0 {
			return nil, fmt.Errorf("tinderbox record had no timestamp")
		}
		return f.Tinderbox(record.Timestamp), nil
	case build.KindCompile:
		if f.Builder == nil {
			return nil, fmt.Errorf("builder was not configured")
		}
		if record.Revision == "" {
			return nil, fmt.Errorf("compile record had no revision")
		}
		return f.Compiled(f.Compile, record.Revision), nil
	}
	return nil, fmt.Errorf("unknown build type %q", record.Type)
}

var _ build.Factory = (*Factory)(nil)

// TinderboxBuilds lists tinderbox timestamps within [from, to]
func (f *Factory) TinderboxBuilds(ctx context.Context, from, to int64) ([]int64, error) {
	if f.Archive == nil {
		return nil, fmt.Errorf("archive was not configured")
	}
	return f.Archive.TinderboxBuilds(ctx, from, to)
}
