package fs

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/batchtester/internal/clock"
	"github.com/viant/batchtester/internal/idgen"
	"github.com/viant/batchtester/service/messaging"
)

// Message is a batch file read from the queue directory
type Message struct {
	name    string
	payload string
}

// ID returns the file name
func (m *Message) ID() string { return m.name }

// T returns the file content
func (m *Message) T() *string { return &m.payload }

// Queue treats each file of a directory as one batch specification. Files are
// consumed in lexicographic name order and deleted once read.
type Queue struct {
	fs  afs.Service
	dir string
	mu  sync.Mutex
}

// NewQueue creates a queue over dir, creating the directory when missing
func NewQueue(ctx context.Context, fs afs.Service, dir string) (*Queue, error) {
	if dir == "" {
		return nil, fmt.Errorf("queue directory cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	exists, _ := fs.Exists(ctx, dir)
	if !exists {
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Queue{fs: fs, dir: dir}, nil
}

// Dir returns the queue directory
func (q *Queue) Dir() string { return q.dir }

// Publish writes spec into a new file named so that it sorts after existing ones
func (q *Queue) Publish(ctx context.Context, spec *string) error {
	if spec == nil {
		return fmt.Errorf("batch specification was nil")
	}
	location := url.Join(q.dir, idgen.Sortable(clock.Now())+".batch")
	if err := q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewBufferString(*spec)); err != nil {
		return fmt.Errorf("failed to write batch file %s: %w", location, err)
	}
	return nil
}

// Consume reads and deletes the first file, returning nil when the directory is empty
func (q *Queue) Consume(ctx context.Context) (messaging.Message[string], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.fs.List(ctx, q.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch files: %w", err)
	}
	var names []string
	locations := map[string]string{}
	for _, obj := range objects {
		if obj.IsDir() || strings.HasPrefix(obj.Name(), ".") {
			continue
		}
		names = append(names, obj.Name())
		locations[obj.Name()] = obj.URL()
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	name := names[0]
	data, err := q.fs.DownloadWithURL(ctx, locations[name])
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", name, err)
	}
	if err = q.fs.Delete(ctx, locations[name]); err != nil {
		return nil, fmt.Errorf("failed to delete batch file %s: %w", name, err)
	}
	return &Message{name: name, payload: string(data)}, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[string] = (*Queue)(nil)
