package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"vid2audio/domain/conversion"
)

// Registry holds the ordered task list of a batch.
// Callers may add and clear only while no run holds the registry; during a run the
// runner is the single writer of each task's progress fields.
type Registry struct {
	mu      sync.RWMutex
	tasks   []*conversion.Task
	byPath  map[string]conversion.TaskID
	running bool
	files   conversion.FileChecker
	walkDir func(root string, fn fs.WalkDirFunc) error
}

// New creates an empty registry that inspects sources through files
func New(files conversion.FileChecker) *Registry {
	return &Registry{
		byPath:  make(map[string]conversion.TaskID),
		files:   files,
		walkDir: filepath.WalkDir,
	}
}

// Add registers a source file and returns its task id.
// It returns conversion.ErrDuplicateTask if the path is already present and a
// *conversion.FileAccessError if the file cannot be read.
func (r *Registry) Add(path string) (conversion.TaskID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, &conversion.FileAccessError{Path: path, Op: "resolve", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return 0, conversion.ErrRunInProgress
	}
	if id, exists := r.byPath[abs]; exists {
		return id, fmt.Errorf("%w: %s", conversion.ErrDuplicateTask, abs)
	}

	info, err := r.files.Stat(abs)
	if err != nil {
		return 0, &conversion.FileAccessError{Path: abs, Op: "read", Err: err}
	}
	if info.IsDir() {
		return 0, &conversion.FileAccessError{Path: abs, Op: "read", Err: errors.New("is a directory")}
	}

	id := conversion.TaskID(len(r.tasks))
	r.tasks = append(r.tasks, conversion.NewTask(id, abs, info.Size()))
	r.byPath[abs] = id
	return id, nil
}

// AddFolder registers every video file below dir, in lexical order.
// Files already present are skipped. Unreadable files are reported together in the
// returned error while the readable ones are still added.
func (r *Registry) AddFolder(dir string) ([]conversion.TaskID, error) {
	var paths []string
	err := r.walkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Skip unreadable subdirectories
			return nil
		}
		if !d.IsDir() && conversion.IsVideoFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &conversion.FileAccessError{Path: dir, Op: "scan", Err: err}
	}

	var ids []conversion.TaskID
	var errs []error
	for _, p := range paths {
		id, err := r.Add(p)
		switch {
		case err == nil:
			ids = append(ids, id)
		case errors.Is(err, conversion.ErrDuplicateTask):
			continue
		case errors.Is(err, conversion.ErrRunInProgress):
			return ids, err
		default:
			errs = append(errs, err)
		}
	}

	return ids, errors.Join(errs...)
}

// Clear removes every task. It fails with conversion.ErrRunInProgress during a run.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return conversion.ErrRunInProgress
	}
	r.tasks = nil
	r.byPath = make(map[string]conversion.TaskID)
	return nil
}

// List returns copies of all tasks in registry order
func (r *Registry) List() []conversion.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]conversion.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of one task
func (r *Registry) Get(id conversion.TaskID) (conversion.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || int(id) >= len(r.tasks) {
		return conversion.Task{}, false
	}
	return r.tasks[id].Clone(), true
}

// Len returns the number of tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// TotalSize returns the combined size of every source file in bytes
func (r *Registry) TotalSize() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, t := range r.tasks {
		total += t.FileSize
	}
	return total
}

// ApplyOutputNaming points the output of every pending task at outputDir with the given
// extension. Finished tasks keep the path they were converted to. It is rejected while a
// run is in progress.
func (r *Registry) ApplyOutputNaming(outputDir, extension string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return conversion.ErrRunInProgress
	}
	for _, t := range r.tasks {
		if t.Status != conversion.StatusPending {
			continue
		}
		t.OutputPath = conversion.OutputPathFor(t.InputPath, outputDir, extension)
	}
	return nil
}

// Begin reserves the registry for a run and returns the task ids in order.
// Only pending tasks are returned, so tasks finished by an earlier run are not repeated.
func (r *Registry) Begin() ([]conversion.TaskID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil, conversion.ErrRunInProgress
	}

	var ids []conversion.TaskID
	for _, t := range r.tasks {
		if t.Status == conversion.StatusPending {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return nil, conversion.ErrNoTasks
	}

	r.running = true
	return ids, nil
}

// End releases the registry after a run
func (r *Registry) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}

// Running reports whether a run currently holds the registry
func (r *Registry) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Update applies fn to a task under the write lock and returns the updated copy
func (r *Registry) Update(id conversion.TaskID, fn func(*conversion.Task) error) (conversion.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 0 || int(id) >= len(r.tasks) {
		return conversion.Task{}, fmt.Errorf("unknown task %d", id)
	}
	t := r.tasks[id]
	if err := fn(t); err != nil {
		return t.Clone(), err
	}
	return t.Clone(), nil
}
