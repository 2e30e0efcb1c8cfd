package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/viant/batchtester/internal/clock"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/progress"
	"github.com/viant/batchtester/service/helper"
	"github.com/viant/batchtester/service/messaging"
	"github.com/viant/batchtester/service/pool"
	"github.com/viant/batchtester/service/status"
)

// NoteAlreadyQueued is added to the batch note for builds whose identity is already tracked
const NoteAlreadyQueued = "already queued"

// Step reports what a tick did
type Step struct {
	// Progress is false when the tick changed nothing
	Progress bool
	// Done is true once a single batch run drained
	Done bool
}

// running pairs a dispatched build with its pool task
type running struct {
	build *build.BatchBuild
	task  *pool.Task
}

// Service moves builds from pending through building, prepared and running into
// completed or failed. A single goroutine owns every list; the helper and pool
// only exchange results through per unit channels.
type Service struct {
	config     Config
	args       *batch.Args
	tester     pool.Tester
	factory    build.Factory
	store      status.Store
	queue      messaging.Queue[string]
	registrars []batch.FlagRegistrar
	logger     *log.Logger
	progress   *progress.Tracker

	helper    *helper.Helper
	pool      *pool.Pool
	startTime time.Time
	nextIndex int
	// dirty is set once a build entered building since the last pool recycle
	dirty bool

	pending   []*build.BatchBuild
	building  *build.BatchBuild
	prepared  []*build.BatchBuild
	running   []*running
	completed []*build.BatchBuild
	failed    []*build.BatchBuild
	skipped   []*build.BatchBuild

	pendingBatches   []*batch.Job
	processedBatches []*batch.Job
	expanding        *batch.Job

	shutdownCh chan struct{}
}

// New creates an orchestrator. args are the process wide arguments; in single
// batch mode they also describe the only batch.
func New(args *batch.Args, expander helper.Expander, tester pool.Tester, options ...Option) (*Service, error) {
	if args == nil {
		return nil, fmt.Errorf("args were nil")
	}
	if expander == nil {
		return nil, fmt.Errorf("expander was nil")
	}
	if tester == nil {
		return nil, fmt.Errorf("tester was nil")
	}
	ret := &Service{
		config:     DefaultConfig(),
		args:       args,
		tester:     tester,
		logger:     log.Default(),
		helper:     helper.New(expander),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if ret.config.Resume && ret.factory == nil {
		return nil, fmt.Errorf("resume requires a source factory")
	}
	if ret.progress == nil {
		ret.progress = progress.NewTracker(func(p progress.Progress) {
			ret.logger.Printf("Status: %v", p)
		})
	}
	ret.startTime = clock.Now()
	ret.pool = ret.newPool()
	return ret, nil
}

func (s *Service) newPool() *pool.Pool {
	return pool.New(s.config.Processes, s.config.BasePort, s.tester, s.args)
}

// Continuous returns true when batches are read from a queue
func (s *Service) Continuous() bool {
	return s.queue != nil
}

// Init restores unfinished builds when resume is enabled and, in single batch
// mode, enqueues the batch described by the process arguments.
func (s *Service) Init(ctx context.Context) error {
	if s.config.Resume {
		if err := s.resume(ctx); err != nil {
			return err
		}
	}
	if !s.Continuous() {
		s.pendingBatches = append(s.pendingBatches, batch.NewJob(s.args))
	}
	return nil
}

func (s *Service) resume(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snapshot, err := s.store.Load(ctx)
	if errors.Is(err, status.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load status: %w", err)
	}
	for _, record := range snapshot.Resumable() {
		b, err := build.Restore(s.factory, record)
		if err != nil {
			s.logger.Printf("failed to resume %v %v: %v", record.Type, record.Revision, err)
			continue
		}
		b.Note, b.Started, b.Finished = "", nil, nil
		if s.tracked(b.Identity()) {
			continue
		}
		s.pending = append(s.pending, b)
	}
	s.logger.Printf("resumed %d builds from status", len(s.pending))
	return nil
}

// Run initializes the service and ticks until the single batch drains, ctx is done or Shutdown is called
func (s *Service) Run(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		default:
		}
		step := s.Tick(ctx)
		if step.Done {
			s.logger.Printf("No more tasks, exiting")
			s.pool.Close()
			return nil
		}
		if step.Progress {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-time.After(s.config.PollInterval):
		}
	}
}

// Shutdown stops Run after the current tick; in-flight work is not interrupted
func (s *Service) Shutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// Tick performs one scheduling pass
func (s *Service) Tick(ctx context.Context) Step {
	// work started here must not be cancelled mid-flight
	workCtx := context.WithoutCancel(ctx)
	moved := s.reap()
	if s.checkHelper(workCtx) {
		moved = true
	}
	if s.readQueue(ctx) {
		moved = true
	}
	if s.admit() {
		moved = true
	}
	if s.dispatch(workCtx) {
		moved = true
	}
	s.persist(ctx)
	s.progress.Observe(s.Progress())

	if !s.drained() {
		return Step{Progress: moved}
	}
	if !s.Continuous() {
		return Step{Progress: moved, Done: true}
	}
	if s.dirty {
		s.logger.Printf("All tasks complete. Resetting")
		s.recycle()
		s.sweep()
		moved = true
	}
	return Step{Progress: moved}
}

// reap collects finished test runs
func (s *Service) reap() bool {
	moved := false
	remaining := s.running[:0]
	for _, item := range s.running {
		done, err := item.task.Poll()
		if !done {
			remaining = append(remaining, item)
			continue
		}
		moved = true
		b := item.build
		now := clock.Now()
		if err == nil {
			s.logger.Printf("Build %d finished", b.Num())
			b.Finish(now)
			s.completed = append(s.completed, b)
		} else {
			s.logger.Printf("!! Build %d failed: %v", b.Num(), err)
			b.Fail(now, "task returned error: "+err.Error())
			s.failed = append(s.failed, b)
		}
		s.cleanup(b)
	}
	for i := len(remaining); i < len(s.running); i++ {
		s.running[i] = nil
	}
	s.running = remaining
	return moved
}

func (s *Service) cleanup(b *build.BatchBuild) {
	if err := b.Source.Cleanup(); err != nil {
		s.logger.Printf("failed to clean up build %d: %v", b.Num(), err)
	}
}

// checkHelper drains a finished helper unit and assigns new work when idle
func (s *Service) checkHelper(ctx context.Context) bool {
	moved := false
	if result, ok := s.helper.Poll(); ok {
		moved = true
		switch result.Kind {
		case helper.KindExpand:
			s.expanded(result)
		case helper.KindPrepare:
			s.onPrepared(result)
		}
	}
	if s.helper.Busy() {
		return moved
	}
	if len(s.pendingBatches) > 0 {
		job := s.pendingBatches[0]
		s.pendingBatches = s.pendingBatches[1:]
		if job.Cursor == 0 {
			s.logger.Printf("Handling batch %v", describe(job))
		}
		if err := s.helper.Expand(ctx, job); err != nil {
			s.pendingBatches = append([]*batch.Job{job}, s.pendingBatches...)
			return moved
		}
		s.expanding = job
		return true
	}
	if s.building != nil {
		s.logger.Printf("Starting build for %v", s.building)
		if err := s.helper.Prepare(ctx, s.building); err == nil {
			return true
		}
	}
	return moved
}

func (s *Service) expanded(result *helper.Result) {
	job := result.Job
	s.expanding = nil
	now := clock.Now()
	if result.Status != helper.StatusSuccess {
		job.Note = fmt.Sprintf("failed: %v", result.Err)
		s.finishBatch(job, now)
		return
	}
	for _, b := range result.Skipped {
		if s.tracked(b.Identity()) {
			continue
		}
		s.skipped = append(s.skipped, b)
	}
	var accepted []*build.BatchBuild
	for _, b := range result.Accepted {
		if s.tracked(b.Identity()) || containsIdentity(accepted, b.Identity()) {
			s.logger.Printf("%v is %v", b.Identity(), NoteAlreadyQueued)
			job.Note = appendNote(job.Note, NoteAlreadyQueued+": "+b.Identity().String())
			continue
		}
		accepted = append(accepted, b)
	}
	if job.Prioritized() {
		s.pending = append(accepted, s.pending...)
	} else {
		s.pending = append(s.pending, accepted...)
	}
	job.Cursor = result.Cursor
	if result.Exhausted {
		s.finishBatch(job, now)
		return
	}
	s.pendingBatches = append([]*batch.Job{job}, s.pendingBatches...)
}

func (s *Service) finishBatch(job *batch.Job, now time.Time) {
	job.Finish(now)
	s.logger.Printf("Batch completed: %v (%v)", describe(job), job.Note)
	s.processedBatches = append(s.processedBatches, job)
}

func (s *Service) onPrepared(result *helper.Result) {
	b := s.building
	s.building = nil
	if b == nil {
		return
	}
	b.Refresh()
	if result.Status == helper.StatusSuccess {
		s.logger.Printf("Build %d prepared", b.Num())
		s.prepared = append(s.prepared, b)
		return
	}
	s.logger.Printf("!! Build %d failed to prepare: %v", b.Num(), result.Err)
	b.Fail(clock.Now(), fmt.Sprintf("failed: %v", result.Err))
	s.cleanup(b)
	s.failed = append(s.failed, b)
}

// readQueue turns one queued batch file into a pending batch
func (s *Service) readQueue(ctx context.Context) bool {
	if s.queue == nil {
		return false
	}
	msg, err := s.queue.Consume(ctx)
	if err != nil {
		s.logger.Printf("failed to read batch queue: %v", err)
		return false
	}
	if msg == nil {
		return false
	}
	raw := *msg.T()
	args, err := batch.ParseLine(raw, s.registrars...)
	if err != nil {
		note := fmt.Sprintf("Failed to parse batch file command: %q: %v", raw, err)
		s.logger.Printf("%s", note)
		s.processedBatches = append(s.processedBatches, batch.NewRejectedJob(raw, note, clock.Now()))
		return true
	}
	job := batch.NewJob(args)
	job.Raw = raw
	s.pendingBatches = append(s.pendingBatches, job)
	return true
}

// admit promotes the head of pending into building while the admission window has room
func (s *Service) admit() bool {
	if s.helper.Busy() || s.building != nil || len(s.pending) == 0 {
		return false
	}
	if s.inProgress() >= s.config.admissionLimit() {
		return false
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	b.AssignIndex(s.nextIndex)
	s.nextIndex++
	s.building = b
	s.dirty = true
	return true
}

// dispatch moves prepared builds into the pool while it has free workers
func (s *Service) dispatch(ctx context.Context) bool {
	moved := false
	for len(s.prepared) > 0 && len(s.running) < s.config.Processes {
		b := s.prepared[0]
		// workers read the build once submitted so it is stamped first
		b.Start(clock.Now())
		task, err := s.pool.Submit(ctx, b)
		if err != nil {
			b.Started = nil
			s.logger.Printf("failed to dispatch build %d: %v", b.Num(), err)
			break
		}
		s.prepared = s.prepared[1:]
		s.logger.Printf("Moving build %d to running", b.Num())
		s.running = append(s.running, &running{build: b, task: task})
		moved = true
	}
	return moved
}

func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.Snapshot()); err != nil {
		s.logger.Printf("failed to write status: %v", err)
	}
}

func (s *Service) inProgress() int {
	ret := len(s.prepared) + len(s.running)
	if s.building != nil {
		ret++
	}
	return ret
}

func (s *Service) drained() bool {
	return !s.helper.Busy() && s.building == nil && len(s.pending) == 0 &&
		len(s.prepared) == 0 && len(s.running) == 0 && len(s.pendingBatches) == 0
}

// tracked returns true when identity is in any build list
func (s *Service) tracked(identity build.Identity) bool {
	if s.building != nil && s.building.Identity() == identity {
		return true
	}
	for _, list := range [][]*build.BatchBuild{s.pending, s.prepared, s.completed, s.failed, s.skipped} {
		if containsIdentity(list, identity) {
			return true
		}
	}
	for _, item := range s.running {
		if item.build.Identity() == identity {
			return true
		}
	}
	return false
}

func containsIdentity(list []*build.BatchBuild, identity build.Identity) bool {
	for _, b := range list {
		if b.Identity() == identity {
			return true
		}
	}
	return false
}

func appendNote(note, text string) string {
	if note == "" {
		return text
	}
	return note + "; " + text
}

// recycle replaces the drained pool and restarts build numbering
func (s *Service) recycle() {
	s.pool.Close()
	s.pool = s.newPool()
	s.nextIndex = 0
	s.dirty = false
}

// sweep drops finished builds and batches older than SweepAge
func (s *Service) sweep() {
	age := s.config.SweepAge
	keep := func(builds []*build.BatchBuild) []*build.BatchBuild {
		var ret []*build.BatchBuild
		for _, b := range builds {
			if !clock.Older(b.Finished, age) {
				ret = append(ret, b)
			}
		}
		return ret
	}
	s.completed = keep(s.completed)
	s.failed = keep(s.failed)
	s.skipped = keep(s.skipped)
	var batches []*batch.Job
	for _, job := range s.processedBatches {
		if !clock.Older(job.Finished, age) {
			batches = append(batches, job)
		}
	}
	s.processedBatches = batches
}

// Progress returns the current per-state counters
func (s *Service) Progress() progress.Progress {
	ret := progress.Progress{
		Pending:   len(s.pending),
		Prepared:  len(s.prepared),
		Running:   len(s.running),
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Skipped:   len(s.skipped),
		Batches:   len(s.pendingBatches),
	}
	if s.building != nil {
		ret.Building = 1
	}
	if s.expanding != nil {
		ret.Batches++
	}
	return ret
}

// Snapshot returns the persisted form of the current state
func (s *Service) Snapshot() *status.Snapshot {
	ret := &status.Snapshot{
		StartTime: s.startTime,
		Batches:   append([]*batch.Job{}, s.processedBatches...),
		Pending:   status.Records(s.pending),
		Prepared:  status.Records(s.prepared),
		Completed: status.Records(s.completed),
		Failed:    status.Records(s.failed),
		Skipped:   status.Records(s.skipped),
	}
	if s.expanding != nil {
		ret.PendingBatches = append(ret.PendingBatches, s.expanding)
	}
	ret.PendingBatches = append(ret.PendingBatches, s.pendingBatches...)
	if s.building != nil {
		ret.Building = s.building.Record()
	}
	ret.Running = make([]*build.Record, 0, len(s.running))
	for _, item := range s.running {
		ret.Running = append(ret.Running, item.build.Record())
	}
	return ret
}

func describe(job *batch.Job) string {
	if job.Raw != "" {
		return fmt.Sprintf("%q", job.Raw)
	}
	if job.Args == nil {
		return job.ID
	}
	ret := fmt.Sprintf("--mode %v --firstbuild %v", job.Args.Mode, job.Args.FirstBuild)
	if job.Args.LastBuild != "" {
		ret += " --lastbuild " + job.Args.LastBuild
	}
	return ret
}
