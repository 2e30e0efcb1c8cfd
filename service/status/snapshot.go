package status

import (
	"context"
	"time"

	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
)

// Snapshot is the persisted state of the scheduler
type Snapshot struct {
	StartTime      time.Time       `json:"starttime" yaml:"starttime"`
	Building       *build.Record   `json:"building" yaml:"building"`
	Batches        []*batch.Job    `json:"batches" yaml:"batches"`
	PendingBatches []*batch.Job    `json:"pendingbatches" yaml:"pendingbatches"`
	Pending        []*build.Record `json:"pending" yaml:"pending"`
	Prepared       []*build.Record `json:"prepared" yaml:"prepared"`
	Running        []*build.Record `json:"running" yaml:"running"`
	Completed      []*build.Record `json:"completed" yaml:"completed"`
	Failed         []*build.Record `json:"failed" yaml:"failed"`
	Skipped        []*build.Record `json:"skipped" yaml:"skipped"`
}

// Resumable returns records of builds that did not reach a terminal state,
// ordered running, prepared, building, pending
func (s *Snapshot) Resumable() []*build.Record {
	var ret []*build.Record
	ret = append(ret, s.Running...)
	ret = append(ret, s.Prepared...)
	if s.Building != nil {
		ret = append(ret, s.Building)
	}
	ret = append(ret, s.Pending...)
	return ret
}

// Store persists snapshots
type Store interface {
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns ErrNotFound when nothing was saved
	Load(ctx context.Context) (*Snapshot, error)
}

// Records converts builds into records
func Records(builds []*build.BatchBuild) []*build.Record {
	ret := make([]*build.Record, 0, len(builds))
	for _, b := range builds {
		ret = append(ret, b.Record())
	}
	return ret
}
