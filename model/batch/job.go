package batch

import (
	"time"

	"github.com/viant/batchtester/internal/idgen"
)

// Job describes a set of candidate builds to enqueue
type Job struct {
	ID   string `json:"id" yaml:"id"`
	Args *Args  `json:"args,omitempty" yaml:"args,omitempty"`
	// Raw holds the unparsed specification when it came from a batch file
	Raw  string `json:"raw,omitempty" yaml:"raw,omitempty"`
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
	// Cursor counts candidates already consumed by previous expansions
	Cursor   int        `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Finished *time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
}

// NewJob creates a job for the supplied arguments
func NewJob(args *Args) *Job {
	return &Job{ID: idgen.New(), Args: args}
}

// NewRejectedJob creates an already processed job for a specification that could not be parsed
func NewRejectedJob(raw, note string, at time.Time) *Job {
	return &Job{ID: idgen.New(), Raw: raw, Note: note, Finished: &at}
}

// Prioritized returns true when the job's builds go to the head of the pending list
func (j *Job) Prioritized() bool {
	return j.Args != nil && j.Args.Prioritize
}

// Finish marks job as processed
func (j *Job) Finish(at time.Time) {
	j.Finished = &at
}
