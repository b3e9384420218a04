package store

import (
	"os"
	"path/filepath"
	"strings"
)

// FileStore is the flat fallback provider: one JSON file per record under
// RootPath/collection/. It has none of sqlite's transactional guarantees,
// which is acceptable because every write replaces a whole record.
type FileStore struct {
	RootPath string
}

func NewFileStore(root string) *FileStore {
	// Ensure the root directory exists
	_ = os.MkdirAll(root, 0755)
	return &FileStore{RootPath: root}
}

// sanitize keeps record ids filesystem-safe. Ids are internally generated
// ("slot1", "slot1_backup_1735689600000") so this only guards path tricks.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	id = strings.ReplaceAll(id, "..", "_")
	return id
}

func (f *FileStore) path(collection, id string) string {
	return filepath.Join(f.RootPath, sanitize(collection), sanitize(id)+".json")
}

func (f *FileStore) Put(collection, id string, payload []byte) error {
	p := f.path(collection, id)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return quotaErr(err)
	}
	// Write-then-rename so a crash mid-write never leaves a torn live record.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return quotaErr(err)
	}
	return quotaErr(os.Rename(tmp, p))
}

func (f *FileStore) Get(collection, id string) (*Record, error) {
	p := f.path(collection, id)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Payload: data, UpdatedAt: stat.ModTime()}, nil
}

func (f *FileStore) GetAll(collection string) ([]Record, error) {
	dir := filepath.Join(f.RootPath, sanitize(collection))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil // empty collection, not an error
	}
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		rec, err := f.Get(collection, id)
		if err != nil {
			continue // torn file, skip it
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *FileStore) Delete(collection, id string) error {
	err := os.Remove(f.path(collection, id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileStore) Clear(collection string) error {
	err := os.RemoveAll(filepath.Join(f.RootPath, sanitize(collection)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
