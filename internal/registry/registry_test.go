package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

func TestUpsertPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg := openTestRegistry(t, path, nil)

	record := sampleRecord("Open Sans", 400, 700)
	if err := reg.Upsert(record); err != nil {
		t.Fatalf("upsert error: %v", err)
	}

	got, ok := reg.Get("open   sans")
	if !ok {
		t.Fatalf("lookup should be case and whitespace insensitive")
	}
	if len(got.Weights) != 2 || got.Weights[0] != 400 || got.Weights[1] != 700 {
		t.Fatalf("weights should be projected from files: %v", got.Weights)
	}

	reopened := openTestRegistry(t, path, nil)
	if reopened.Len() != 1 {
		t.Fatalf("expected 1 record after reload, got %d", reopened.Len())
	}
	if _, ok := reopened.Get("Open Sans"); !ok {
		t.Fatalf("record should survive reload")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	if !strings.Contains(string(data), `"version": 1`) {
		t.Fatalf("registry document should carry a version: %s", data)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	reg := openTestRegistry(t, filepath.Join(t.TempDir(), "registry.json"), nil)
	if err := reg.Upsert(sampleRecord("Barlow", 400)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	got, _ := reg.Get("Barlow")
	got.Files[0].LocalPath = "tampered"
	got.Weights[0] = 1

	again, _ := reg.Get("Barlow")
	if again.Files[0].LocalPath == "tampered" || again.Weights[0] == 1 {
		t.Fatalf("callers must not be able to mutate registry state")
	}
}

func TestRemove(t *testing.T) {
	reg := openTestRegistry(t, filepath.Join(t.TempDir(), "registry.json"), nil)
	if err := reg.Upsert(sampleRecord("Inter", 400)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	removed, err := reg.Remove("inter")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	removed, err = reg.Remove("inter")
	if err != nil || removed {
		t.Fatalf("second removal should report false, got %v %v", removed, err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry should be empty")
	}
}

func TestCorruptRegistryStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	reg := openTestRegistry(t, path, logger)

	if reg.Len() != 0 {
		t.Fatalf("corrupt registry should load empty")
	}
	if !strings.Contains(buf.String(), "registry_load_failed") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}

	if err := reg.Upsert(sampleRecord("Roboto", 400)); err != nil {
		t.Fatalf("upsert after corruption should succeed: %v", err)
	}
	if openTestRegistry(t, path, logger).Len() != 1 {
		t.Fatalf("rewritten registry should be valid")
	}
}

func TestUpdateErrorLeavesStateUntouched(t *testing.T) {
	reg := openTestRegistry(t, filepath.Join(t.TempDir(), "registry.json"), nil)
	if err := reg.Upsert(sampleRecord("Lato", 400)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	boom := errors.New("boom")
	_, err := reg.Update("Lato", func(current *font.Record) (*font.Record, error) {
		current.Files = nil
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	got, _ := reg.Get("Lato")
	if len(got.Files) != 1 {
		t.Fatalf("failed update must not change state")
	}
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg := openTestRegistry(t, path, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 9; i++ {
		weight := i * 100
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Update("Merge Test", func(current *font.Record) (*font.Record, error) {
				incoming := font.Record{
					Name:  "Merge Test",
					Files: []font.FileEntry{{Weight: weight, Style: font.StyleNormal, Format: font.FormatWOFF2, LocalPath: "x"}},
				}
				merged := font.MergeRecord(current, incoming)
				return &merged, nil
			})
			if err != nil {
				t.Errorf("update error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, ok := openTestRegistry(t, path, nil).Get("Merge Test")
	if !ok || len(got.Files) != 9 {
		t.Fatalf("all concurrent merges should be persisted, got %+v", got)
	}
}

func TestTwoRegistriesShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	first := openTestRegistry(t, path, nil)
	second := openTestRegistry(t, path, nil)

	if err := first.Upsert(sampleRecord("Alpha", 400)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := second.Upsert(sampleRecord("Beta", 400)); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if got := openTestRegistry(t, path, nil).Len(); got != 2 {
		t.Fatalf("second writer must not clobber the first, got %d records", got)
	}
}

func TestRegistryWritesThroughStore(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewStore(root)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	reg, err := Open(store, filepath.Join("meta", "registry.json"), nil)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	if want := filepath.Join(store.Root(), "meta", "registry.json"); reg.Path() != want {
		t.Fatalf("relative path should resolve under the store root: %s", reg.Path())
	}
	for _, name := range []string{"Barlow", "Lora", "Inter"} {
		if err := reg.Upsert(sampleRecord(name, 400)); err != nil {
			t.Fatalf("upsert error: %v", err)
		}
	}
	if _, err := reg.Remove("Lora"); err != nil {
		t.Fatalf("remove error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(store.Root(), "meta"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if strings.Join(names, ",") != "registry.json,registry.json.lock" {
		t.Fatalf("no temp files should be left behind, got %v", names)
	}

	outside := filepath.Join(t.TempDir(), "registry.json")
	if _, err := Open(store, outside, nil); !errors.Is(err, storage.ErrOutsideRoot) {
		t.Fatalf("registry outside the store root should be rejected, got %v", err)
	}
}

func openTestRegistry(t *testing.T, path string, logger *logrus.Logger) *Registry {
	t.Helper()
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(&bytes.Buffer{})
	}
	store, err := storage.NewStore(filepath.Dir(path))
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	reg, err := Open(store, filepath.Base(path), logger)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return reg
}

func sampleRecord(name string, weights ...int) font.Record {
	files := make([]font.FileEntry, 0, len(weights))
	for _, w := range weights {
		files = append(files, font.FileEntry{
			Weight:    w,
			Style:     font.StyleNormal,
			Format:    font.FormatWOFF2,
			LocalPath: font.Sanitize(name) + "/" + font.Descriptor{Family: name, Weight: w, Style: font.StyleNormal, Format: font.FormatWOFF2}.FileName(),
		})
	}
	return font.Record{Name: name, DisplayName: name, Files: files, CachedAt: time.Now().UTC()}
}
