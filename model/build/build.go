package build

import (
	"fmt"
	"time"
)

// DateLayout is the layout used for nightly dates
const DateLayout = "2006-01-02"

// Identity is the key under which a build can be queued at most once
type Identity struct {
	Kind     Kind
	Revision string
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.Revision)
}

// BatchBuild wraps a build source with pipeline bookkeeping
type BatchBuild struct {
	Source   Source
	Revision string
	Index    *int
	Note     string
	Started  *time.Time
	Finished *time.Time
	// Timestamp caches the source build time as last observed by the scheduler
	Timestamp time.Time
}

// New creates a batch build for the supplied source and canonical revision
func New(source Source, revision string) *BatchBuild {
	return &BatchBuild{Source: source, Revision: revision}
}

// Identity returns the identity key of this build
func (b *BatchBuild) Identity() Identity {
	return Identity{Kind: b.Source.Kind(), Revision: b.Revision}
}

// AssignIndex sets the display index; it returns false when the index was already set
func (b *BatchBuild) AssignIndex(index int) bool {
	if b.Index != nil {
		return false
	}
	b.Index = &index
	return true
}

// Num returns the display index or -1 when not assigned
func (b *BatchBuild) Num() int {
	if b.Index == nil {
		return -1
	}
	return *b.Index
}

// Start marks the build as started
func (b *BatchBuild) Start(at time.Time) {
	b.Started = &at
}

// Finish marks the build as finished
func (b *BatchBuild) Finish(at time.Time) {
	b.Finished = &at
}

// Fail finishes the build with the supplied note
func (b *BatchBuild) Fail(at time.Time, note string) {
	b.Note = note
	b.Finish(at)
}

// Refresh copies the source build time into the cached timestamp
func (b *BatchBuild) Refresh() {
	if t := b.Source.BuildTime(); !t.IsZero() {
		b.Timestamp = t
	}
}

func (b *BatchBuild) String() string {
	if b.Index != nil {
		return fmt.Sprintf("#%d %s", *b.Index, b.Identity())
	}
	return b.Identity().String()
}

// Record is the persisted form of a batch build
type Record struct {
	Type      Kind       `json:"type" yaml:"type"`
	Timestamp int64      `json:"timestamp" yaml:"timestamp"`
	Revision  string     `json:"revision" yaml:"revision"`
	For       string     `json:"for,omitempty" yaml:"for,omitempty"`
	Index     *int       `json:"index,omitempty" yaml:"index,omitempty"`
	Note      string     `json:"note,omitempty" yaml:"note,omitempty"`
	Started   *time.Time `json:"started,omitempty" yaml:"started,omitempty"`
	Finished  *time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
}

// Record serializes the build. It only reads scheduler-owned fields so it can be
// called while the source is being prepared by a worker.
func (b *BatchBuild) Record() *Record {
	ret := &Record{
		Type:     b.Source.Kind(),
		Revision: b.Revision,
		Index:    b.Index,
		Note:     b.Note,
		Started:  b.Started,
		Finished: b.Finished,
	}
	if !b.Timestamp.IsZero() {
		ret.Timestamp = b.Timestamp.Unix()
	}
	if dated, ok := b.Source.(Dated); ok {
		ret.For = dated.Date().Format(DateLayout)
	}
	return ret
}

// Restore rebuilds a batch build from its record. The index is not restored:
// restored builds re-enter the pipeline and get a fresh one.
func Restore(factory Factory, record *Record) (*BatchBuild, error) {
	if record == nil {
		return nil, fmt.Errorf("record was nil")
	}
	source, err := factory.Restore(record)
	if err != nil {
		return nil, err
	}
	ret := New(source, record.Revision)
	ret.Note = record.Note
	ret.Started = record.Started
	ret.Finished = record.Finished
	if record.Timestamp > 0 {
		ret.Timestamp = time.Unix(record.Timestamp, 0)
	}
	return ret, nil
}
