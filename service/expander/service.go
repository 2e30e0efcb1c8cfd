package expander

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/internal/clock"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/source"
	"github.com/viant/batchtester/service/vcs"
	"github.com/viant/batchtester/tracing"
)

const (
	// NoteRevisionLookup is recorded on builds whose revision could not be canonicalized
	NoteRevisionLookup = "failed to lookup full revision"
	// NoteSkippedByHook is recorded on builds the hook declined
	NoteSkippedByHook = "build skipped by tester (likely already tested)"
)

// Sources creates candidate build sources
type Sources interface {
	Nightly(date time.Time) build.Source
	Tinderbox(timestamp int64) build.Source
	Compiled(spec source.CompileSpec, commit string) build.Source
	TinderboxBuilds(ctx context.Context, from, to int64) ([]int64, error)
}

// VCS resolves revisions
type VCS interface {
	Pull(ctx context.Context, repo string) error
	Range(ctx context.Context, repo, first, last string) ([]string, error)
	Resolve(ctx context.Context, repo, revision string) (string, error)
}

// Result holds the outcome of a single expansion step
type Result struct {
	Accepted []*build.BatchBuild
	Skipped  []*build.BatchBuild
	// Cursor is the number of candidates consumed so far
	Cursor    int
	Exhausted bool
}

// Service turns batch jobs into batch builds, accepting at most one build per call
type Service struct {
	sources Sources
	vcs     VCS
	hook    hook.Hook
	global  *batch.Args

	mux        sync.Mutex
	candidates map[string][]build.Source
}

// New creates an expander; global carries the command line arguments of the process
func New(sources Sources, vcs VCS, h hook.Hook, global *batch.Args) *Service {
	if h == nil {
		h = hook.Missing{}
	}
	if global == nil {
		global = &batch.Args{}
	}
	return &Service{sources: sources, vcs: vcs, hook: h, global: global, candidates: map[string][]build.Source{}}
}

// Expand walks job candidates from its cursor until one build is accepted or
// candidates run out. Candidates that cannot be resolved or that the hook
// declines are returned as skipped.
func (s *Service) Expand(ctx context.Context, job *batch.Job) (result *Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "expand", map[string]string{"job.id": job.ID})
	defer func() { span.End(err) }()
	args := job.Args
	if args == nil {
		return nil, fmt.Errorf("batch had no arguments")
	}
	noPull := s.global.NoPull || args.NoPull
	if job.Cursor == 0 && !noPull && s.global.Repo != "" {
		if err = s.vcs.Pull(ctx, s.global.Repo); err != nil {
			return nil, fmt.Errorf("failed to pull %v: %w", s.global.Repo, err)
		}
	}
	candidates, err := s.lookupCandidates(ctx, job, noPull)
	if err != nil {
		return nil, err
	}
	result = &Result{Cursor: job.Cursor}
	for result.Cursor < len(candidates) {
		candidate := candidates[result.Cursor]
		result.Cursor++
		b, note := s.admit(ctx, candidate, args)
		if note == "" {
			result.Accepted = append(result.Accepted, b)
			break
		}
		b.Fail(clock.Now(), note)
		log.Printf("skipping %v: %v", b, note)
		result.Skipped = append(result.Skipped, b)
	}
	result.Exhausted = result.Cursor >= len(candidates)
	if result.Exhausted {
		s.mux.Lock()
		delete(s.candidates, job.ID)
		s.mux.Unlock()
	}
	return result, nil
}

// admit returns the batch build for candidate and a note when it is skipped
func (s *Service) admit(ctx context.Context, candidate build.Source, args *batch.Args) (*build.BatchBuild, string) {
	b := build.New(candidate, "")
	revision, err := candidate.Revision(ctx)
	if err == nil && !vcs.IsFull(revision) {
		revision, err = s.vcs.Resolve(ctx, s.global.Repo, revision)
	}
	if err != nil {
		log.Printf("failed to resolve revision of %v: %v", candidate, err)
		return b, NoteRevisionLookup
	}
	b.Revision = revision
	b.Refresh()
	if !s.hook.ShouldTest(ctx, b, s.global) {
		return b, NoteSkippedByHook
	}
	return b, ""
}

// lookupCandidates enumerates job candidates once and keeps them until the job is exhausted
func (s *Service) lookupCandidates(ctx context.Context, job *batch.Job, noPull bool) ([]build.Source, error) {
	s.mux.Lock()
	candidates, ok := s.candidates[job.ID]
	s.mux.Unlock()
	if ok {
		return candidates, nil
	}
	candidates, err := s.enumerate(ctx, job.Args, noPull)
	if err != nil {
		return nil, err
	}
	s.mux.Lock()
	s.candidates[job.ID] = candidates
	s.mux.Unlock()
	return candidates, nil
}

func (s *Service) enumerate(ctx context.Context, args *batch.Args, noPull bool) ([]build.Source, error) {
	if args.FirstBuild == "" {
		return nil, fmt.Errorf("--firstbuild is required")
	}
	switch args.Mode {
	case batch.ModeNightly:
		return s.nightlies(args)
	case batch.ModeTinderbox:
		return s.tinderboxes(ctx, args)
	case batch.ModeBuild:
		return s.compiles(ctx, args, noPull)
	}
	return nil, fmt.Errorf("unknown mode %q", args.Mode)
}

func (s *Service) nightlies(args *batch.Args) ([]build.Source, error) {
	first, err := time.Parse(build.DateLayout, args.FirstBuild)
	if err != nil {
		return nil, fmt.Errorf("could not parse %v as a YYYY-MM-DD date: %w", args.FirstBuild, err)
	}
	last := first
	if args.IsRange() {
		if last, err = time.Parse(build.DateLayout, args.LastBuild); err != nil {
			return nil, fmt.Errorf("could not parse %v as a YYYY-MM-DD date: %w", args.LastBuild, err)
		}
	}
	var ret []build.Source
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		ret = append(ret, s.sources.Nightly(day))
	}
	return ret, nil
}

func (s *Service) tinderboxes(ctx context.Context, args *batch.Args) ([]build.Source, error) {
	first, err := parseTimestamp(args.FirstBuild)
	if err != nil {
		return nil, err
	}
	if !args.IsRange() {
		return []build.Source{s.sources.Tinderbox(first)}, nil
	}
	last, err := parseTimestamp(args.LastBuild)
	if err != nil {
		return nil, err
	}
	timestamps, err := s.sources.TinderboxBuilds(ctx, first, last)
	if err != nil {
		return nil, err
	}
	ret := make([]build.Source, 0, len(timestamps))
	for _, timestamp := range timestamps {
		ret = append(ret, s.sources.Tinderbox(timestamp))
	}
	return ret, nil
}

func (s *Service) compiles(ctx context.Context, args *batch.Args, noPull bool) ([]build.Source, error) {
	spec := source.CompileSpec{
		Repo:      batch.Merged(args.Repo, s.global.Repo),
		Mozconfig: batch.Merged(args.Mozconfig, s.global.Mozconfig),
		Objdir:    batch.Merged(args.Objdir, s.global.Objdir),
		Pull:      !noPull,
	}
	if spec.Repo == "" || spec.Mozconfig == "" || spec.Objdir == "" {
		return nil, fmt.Errorf("build mode requires --repo, --mozconfig, and --objdir to be set")
	}
	last := args.FirstBuild
	if args.IsRange() {
		last = args.LastBuild
	}
	commits, err := s.vcs.Range(ctx, spec.Repo, args.FirstBuild, last)
	if err != nil {
		return nil, err
	}
	ret := make([]build.Source, 0, len(commits))
	for _, commit := range commits {
		ret = append(ret, s.sources.Compiled(spec, commit))
	}
	return ret, nil
}

// parseTimestamp accepts integer or fractional unix seconds
func parseTimestamp(value string) (int64, error) {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %v: %w", value, err)
	}
	return int64(seconds), nil
}
