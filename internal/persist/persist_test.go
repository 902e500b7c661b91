// ABOUTME: Tests for the crash-safe persistent store
// ABOUTME: Covers refcounting, busy locking, corrupt-file errors, and atomic commit

package persist_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/gather/internal/persist"
)

type testObject struct {
	Value    int `json:"value"`
	modified bool
}

func (o *testObject) IsModified() bool   { return o.modified }
func (o *testObject) SetModified(v bool) { o.modified = v }

func newPersister() *persist.Persister[*testObject] {
	return persist.New(
		func() *testObject { return &testObject{} },
		func(o *testObject) ([]byte, error) { return json.Marshal(o) },
		func(data []byte) (*testObject, error) {
			var o testObject
			if err := json.Unmarshal(data, &o); err != nil {
				return nil, err
			}
			return &o, nil
		},
	)
}

func TestOpen_FreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	p := newPersister()

	pd := p.Get(path)
	obj, err := pd.Open(false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !obj.IsModified() {
		t.Error("fresh object must start modified so an empty file gets replaced")
	}
	obj.Value = 42
	if err := pd.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// A second persister sees the committed value
	pd2 := newPersister().Get(path)
	obj2, err := pd2.Open(false)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if obj2.Value != 42 {
		t.Errorf("expected committed value 42, got %d", obj2.Value)
	}
	if obj2.IsModified() {
		t.Error("loaded object must not start modified")
	}
	if err := pd2.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestClose_UnmodifiedSkipsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	seed(t, path, 7)

	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	pd := newPersister().Get(path)
	if _, err := pd.Open(false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := pd.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("read-only open/close must not rewrite the file")
	}
}

func TestOpen_Reentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	p := newPersister()

	if p.Get(path) != p.Get(path) {
		t.Fatal("Get must return the same handle for the same path")
	}

	pd := p.Get(path)
	obj1, err := pd.Open(false)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	obj2, err := pd.Open(false)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if obj1 != obj2 {
		t.Fatal("reentrant open must return the same in-memory object")
	}

	obj1.Value = 9
	if err := pd.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	// Still referenced: nothing written yet
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		t.Error("file written before the last reference was released")
	}

	if err := pd.Close(); err != nil {
		t.Fatalf("last close failed: %v", err)
	}
	if v := readValue(t, path); v != 9 {
		t.Errorf("expected 9 after last close, got %d", v)
	}
}

func TestOpen_Busy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	holder := newPersister().Get(path)
	if _, err := holder.Open(false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer holder.Close()

	_, err := newPersister().Get(path).Open(false)
	if !errors.Is(err, persist.ErrBusy) {
		t.Fatalf("expected ErrBusy while lock is held, got %v", err)
	}
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, []byte("{{{{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := newPersister().Get(path).Open(false)
	if err == nil {
		t.Fatal("expected error for corrupt state file")
	}
	if !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("diagnostic should mention corruption and removal, got: %v", err)
	}
}

func TestRename_WhileOpen(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "state")
	newPath := filepath.Join(dir, "state-renamed")
	seed(t, oldPath, 3)

	p := newPersister()
	pd := p.Get(oldPath)
	obj, err := pd.Open(false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := pd.Rename(newPath); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if p.Get(newPath) != pd {
		t.Error("handle must be reachable under the new path")
	}

	obj.Value = 4
	obj.SetModified(true)
	if err := pd.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := os.Stat(oldPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("old path should no longer exist")
	}
	if v := readValue(t, newPath); v != 4 {
		t.Errorf("expected 4 at new path, got %d", v)
	}
}

func TestClose_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	seed(t, path, 1)

	pd := newPersister().Get(path)
	obj, err := pd.Open(false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	obj.Value = 2
	obj.SetModified(true)
	if err := pd.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".new-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// seed commits an initial value to path.
func seed(t *testing.T, path string, value int) {
	t.Helper()
	pd := newPersister().Get(path)
	obj, err := pd.Open(false)
	if err != nil {
		t.Fatalf("seed open failed: %v", err)
	}
	obj.Value = value
	obj.SetModified(true)
	if err := pd.Close(); err != nil {
		t.Fatalf("seed close failed: %v", err)
	}
}

func readValue(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var o testObject
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("state file does not decode: %v", err)
	}
	return o.Value
}
