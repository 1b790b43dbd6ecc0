package registry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vid2audio/domain/conversion"
)

// --- Mock implementations for testing ---

// fakeInfo implements os.FileInfo for mockFileChecker
type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

// mockFileChecker implements conversion.FileChecker for testing
type mockFileChecker struct {
	sizes map[string]int64
	dirs  map[string]bool
}

func newMockFileChecker() *mockFileChecker {
	return &mockFileChecker{sizes: make(map[string]int64), dirs: make(map[string]bool)}
}

func (m *mockFileChecker) Exists(path string) bool {
	_, ok := m.sizes[path]
	return ok || m.dirs[path]
}

func (m *mockFileChecker) Stat(path string) (os.FileInfo, error) {
	if m.dirs[path] {
		return fakeInfo{name: filepath.Base(path), dir: true}, nil
	}
	size, ok := m.sizes[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fakeInfo{name: filepath.Base(path), size: size}, nil
}

// osFileChecker implements conversion.FileChecker on the real filesystem
type osFileChecker struct{}

func (osFileChecker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFileChecker) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func TestRegistry_Add(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 500000
	files.sizes["/videos/b.mp4"] = 300000
	r := New(files)

	idA, err := r.Add("/videos/a.mp4")
	if err != nil {
		t.Fatalf("Add(a) error = %v", err)
	}
	idB, err := r.Add("/videos/b.mp4")
	if err != nil {
		t.Fatalf("Add(b) error = %v", err)
	}

	if idA != 0 || idB != 1 {
		t.Errorf("ids = %d, %d, want 0, 1", idA, idB)
	}

	tasks := r.List()
	if len(tasks) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(tasks))
	}
	if tasks[0].FileSize != 500000 || tasks[1].FileSize != 300000 {
		t.Errorf("sizes = %d, %d, want 500000, 300000", tasks[0].FileSize, tasks[1].FileSize)
	}
	if tasks[0].OutputPath != "/videos/a.mp3" {
		t.Errorf("OutputPath = %q, want /videos/a.mp3", tasks[0].OutputPath)
	}
	if got := r.TotalSize(); got != 800000 {
		t.Errorf("TotalSize() = %d, want 800000", got)
	}
}

func TestRegistry_AddDuplicate(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	r := New(files)

	if _, err := r.Add("/videos/a.mp4"); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	_, err := r.Add("/videos/a.mp4")
	if !errors.Is(err, conversion.ErrDuplicateTask) {
		t.Fatalf("second Add() error = %v, want ErrDuplicateTask", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_AddUnreadable(t *testing.T) {
	files := newMockFileChecker()
	files.dirs["/videos"] = true
	r := New(files)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/videos/missing.mp4"},
		{"directory", "/videos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(tt.path)
			var accessErr *conversion.FileAccessError
			if !errors.As(err, &accessErr) {
				t.Fatalf("Add(%q) error = %v, want *FileAccessError", tt.path, err)
			}
			if r.Len() != 0 {
				t.Errorf("Len() = %d, want 0", r.Len())
			}
		})
	}
}

func TestRegistry_MutationsRejectedWhileRunning(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	files.sizes["/videos/b.mp4"] = 10
	r := New(files)
	if _, err := r.Add("/videos/a.mp4"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if _, err := r.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := r.Begin(); !errors.Is(err, conversion.ErrRunInProgress) {
		t.Errorf("second Begin() error = %v, want ErrRunInProgress", err)
	}
	if err := r.Clear(); !errors.Is(err, conversion.ErrRunInProgress) {
		t.Errorf("Clear() error = %v, want ErrRunInProgress", err)
	}
	if _, err := r.Add("/videos/b.mp4"); !errors.Is(err, conversion.ErrRunInProgress) {
		t.Errorf("Add() error = %v, want ErrRunInProgress", err)
	}
	if err := r.ApplyOutputNaming("/out", "mp3"); !errors.Is(err, conversion.ErrRunInProgress) {
		t.Errorf("ApplyOutputNaming() error = %v, want ErrRunInProgress", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.End()
	if err := r.Clear(); err != nil {
		t.Errorf("Clear() after End() error = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", r.Len())
	}
}

func TestRegistry_BeginEmpty(t *testing.T) {
	r := New(newMockFileChecker())
	if _, err := r.Begin(); !errors.Is(err, conversion.ErrNoTasks) {
		t.Errorf("Begin() error = %v, want ErrNoTasks", err)
	}
	if r.Running() {
		t.Error("Running() = true after failed Begin()")
	}
}

func TestRegistry_BeginSkipsFinishedTasks(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	files.sizes["/videos/b.mp4"] = 10
	r := New(files)
	_, _ = r.Add("/videos/a.mp4")
	_, _ = r.Add("/videos/b.mp4")

	now := time.Now()
	_, err := r.Update(0, func(task *conversion.Task) error {
		if err := task.Start(now); err != nil {
			return err
		}
		return task.Complete(now)
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	ids, err := r.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("Begin() ids = %v, want [1]", ids)
	}
}

func TestRegistry_ApplyOutputNaming(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	files.sizes["/videos/sub/b.mkv"] = 10
	r := New(files)
	_, _ = r.Add("/videos/a.mp4")
	_, _ = r.Add("/videos/sub/b.mkv")

	if err := r.ApplyOutputNaming("/music", "flac"); err != nil {
		t.Fatalf("ApplyOutputNaming() error = %v", err)
	}

	want := []string{"/music/a.flac", "/music/b.flac"}
	for i, task := range r.List() {
		if task.OutputPath != want[i] {
			t.Errorf("task %d OutputPath = %q, want %q", i, task.OutputPath, want[i])
		}
	}
}

func TestRegistry_ApplyOutputNamingKeepsFinishedTasks(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	files.sizes["/videos/b.mp4"] = 10
	r := New(files)
	_, _ = r.Add("/videos/a.mp4")
	_, _ = r.Add("/videos/b.mp4")
	if err := r.ApplyOutputNaming("/out", "mp3"); err != nil {
		t.Fatalf("ApplyOutputNaming() error = %v", err)
	}

	if _, err := r.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	now := time.Now()
	_, err := r.Update(0, func(task *conversion.Task) error {
		if err := task.Start(now); err != nil {
			return err
		}
		return task.Complete(now)
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	r.End()

	if err := r.ApplyOutputNaming("/elsewhere", "flac"); err != nil {
		t.Fatalf("ApplyOutputNaming() error = %v", err)
	}

	done, _ := r.Get(0)
	if done.OutputPath != "/out/a.mp3" {
		t.Errorf("completed task OutputPath = %q, want /out/a.mp3", done.OutputPath)
	}
	pending, _ := r.Get(1)
	if pending.OutputPath != "/elsewhere/b.flac" {
		t.Errorf("pending task OutputPath = %q, want /elsewhere/b.flac", pending.OutputPath)
	}
}

func TestRegistry_ListReturnsCopies(t *testing.T) {
	files := newMockFileChecker()
	files.sizes["/videos/a.mp4"] = 10
	r := New(files)
	_, _ = r.Add("/videos/a.mp4")

	tasks := r.List()
	tasks[0].Status = conversion.StatusCompleted

	got, ok := r.Get(0)
	if !ok {
		t.Fatal("Get(0) not found")
	}
	if got.Status != conversion.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if _, ok := r.Get(5); ok {
		t.Error("Get(5) found a task")
	}
}

func TestRegistry_AddFolder(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "b.mp4"), 20)
	mustWrite(t, filepath.Join(dir, "notes.txt"), 5)
	mustWrite(t, filepath.Join(dir, "nested", "a.MOV"), 10)
	mustWrite(t, filepath.Join(dir, "nested", "song.mp3"), 5)

	r := New(osFileChecker{})
	if _, err := r.Add(filepath.Join(dir, "b.mp4")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ids, err := r.AddFolder(dir)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("AddFolder() added %d tasks, want 1", len(ids))
	}

	tasks := r.List()
	if len(tasks) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(tasks))
	}
	if filepath.Base(tasks[1].InputPath) != "a.MOV" {
		t.Errorf("second task = %q, want a.MOV", tasks[1].InputPath)
	}
	if tasks[1].FileSize != 10 {
		t.Errorf("FileSize = %d, want 10", tasks[1].FileSize)
	}
}

func TestRegistry_AddFolderMissing(t *testing.T) {
	r := New(osFileChecker{})
	_, err := r.AddFolder(filepath.Join(t.TempDir(), "missing"))

	var accessErr *conversion.FileAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("AddFolder() error = %v, want *FileAccessError", err)
	}
}

func mustWrite(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
