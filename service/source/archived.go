package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/viant/batchtester/model/build"
)

// lookupFunc resolves archive info for a source
type lookupFunc func(ctx context.Context) (*Info, error)

// archived holds the shared state of sources served from the archive
type archived struct {
	archive *Archive
	lookup  lookupFunc

	prepareMux sync.Mutex // serializes Prepare
	mux        sync.Mutex // guards the fields below
	info       *Info
	dir        string
	prepared   bool
}

func (a *archived) getInfo(ctx context.Context) (*Info, error) {
	a.mux.Lock()
	info := a.info
	a.mux.Unlock()
	if info != nil {
		return info, nil
	}
	info, err := a.lookup(ctx)
	if err != nil {
		return nil, err
	}
	a.mux.Lock()
	a.info = info
	a.mux.Unlock()
	return info, nil
}

// Prepare downloads and extracts the build; it is a no-op when already prepared
func (a *archived) Prepare(ctx context.Context) error {
	a.prepareMux.Lock()
	defer a.prepareMux.Unlock()
	a.mux.Lock()
	prepared := a.prepared
	a.mux.Unlock()
	if prepared {
		return nil
	}
	info, err := a.getInfo(ctx)
	if err != nil {
		return err
	}
	log.Printf("fetching %v", info.ArchiveURL)
	dir, err := Fetch(ctx, a.archive.fs, info)
	if err != nil {
		return err
	}
	a.mux.Lock()
	a.dir = dir
	a.prepared = true
	a.mux.Unlock()
	return nil
}

// Cleanup removes the extracted build
func (a *archived) Cleanup() error {
	a.mux.Lock()
	defer a.mux.Unlock()
	if !a.prepared {
		return nil
	}
	a.prepared = false
	dir := a.dir
	a.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %v: %w", dir, err)
	}
	return nil
}

// Revision returns the revision published in the build info
func (a *archived) Revision(ctx context.Context) (string, error) {
	info, err := a.getInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Revision, nil
}

// Binary returns the extracted executable path
func (a *archived) Binary() (string, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if !a.prepared {
		return "", ErrNotPrepared
	}
	return filepath.Join(a.dir, filepath.FromSlash(a.archive.config.BinaryPath)), nil
}

func (a *archived) infoTime() time.Time {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.info == nil {
		return time.Time{}
	}
	return a.info.Timestamp
}

// Nightly represents the nightly build published for a calendar day
type Nightly struct {
	archived
	date time.Time
}

// NewNightly creates a nightly source for date
func NewNightly(archive *Archive, date time.Time) *Nightly {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	ret := &Nightly{date: date}
	ret.archived.archive = archive
	ret.archived.lookup = func(ctx context.Context) (*Info, error) {
		return archive.Nightly(ctx, date)
	}
	return ret
}

// Kind implements build.Source
func (n *Nightly) Kind() build.Kind { return build.KindNightly }

// Date returns the requested day; the build timestamp may fall on another day
func (n *Nightly) Date() time.Time { return n.date }

// BuildTime implements build.Source
func (n *Nightly) BuildTime() time.Time { return n.infoTime() }

func (n *Nightly) String() string {
	return fmt.Sprintf("nightly(%s)", n.date.Format(build.DateLayout))
}

// Tinderbox represents a continuous-integration build identified by its timestamp
type Tinderbox struct {
	archived
	timestamp int64
}

// NewTinderbox creates a tinderbox source
func NewTinderbox(archive *Archive, timestamp int64) *Tinderbox {
	ret := &Tinderbox{timestamp: timestamp}
	ret.archived.archive = archive
	ret.archived.lookup = func(ctx context.Context) (*Info, error) {
		return archive.Tinderbox(ctx, timestamp)
	}
	return ret
}

// Kind implements build.Source
func (t *Tinderbox) Kind() build.Kind { return build.KindTinderbox }

// Timestamp returns the requested timestamp
func (t *Tinderbox) Timestamp() int64 { return t.timestamp }

// BuildTime returns the directory timestamp, which also identifies the build in the archive
func (t *Tinderbox) BuildTime() time.Time {
	return time.Unix(t.timestamp, 0)
}

func (t *Tinderbox) String() string {
	return fmt.Sprintf("tinderbox(%d)", t.timestamp)
}

var _ build.Source = (*Nightly)(nil)
var _ build.Dated = (*Nightly)(nil)
var _ build.Source = (*Tinderbox)(nil)
