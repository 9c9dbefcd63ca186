package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-appsec/mockrec/mockrec/service/match"
)

// Storage persists artifacts. Paths are full paths below the storage root.
type Storage interface {
	// ReadArtifact returns nil and no error when path does not exist.
	ReadArtifact(path string) (*RecordedArtifact, error)
	// WriteArtifact replaces path atomically, creating intermediate directories.
	WriteArtifact(path string, a *RecordedArtifact) error
	// ListArtifacts returns slash-separated artifact paths relative to root, recursively.
	ListArtifacts(root string) ([]string, error)
	// DeleteAndRecreate removes root with all contents and creates it again empty.
	DeleteAndRecreate(root string) error
	Exists(path string) bool
}

// EncodeArtifact renders a in the on-disk format: two-space indented JSON with a trailing newline.
func EncodeArtifact(a *RecordedArtifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArtifact parses an artifact file.
func DecodeArtifact(data []byte) (*RecordedArtifact, error) {
	var a RecordedArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	a.RecordedAt = a.RecordedAt.UTC()
	return &a, nil
}

// FileStorage stores one pretty-printed JSON file per artifact.
type FileStorage struct {
	lock *rootLock
}

// NewFileStorage returns file storage for artifacts below root. Processes sharing a root
// coordinate so that clearing it never interleaves with a write.
func NewFileStorage(root string) *FileStorage {
	return &FileStorage{lock: newRootLock(root)}
}

func (f *FileStorage) ReadArtifact(path string) (*RecordedArtifact, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	a, err := DecodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return a, nil
}

func (f *FileStorage) WriteArtifact(path string, a *RecordedArtifact) error {
	data, err := EncodeArtifact(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	release, err := f.lock.acquire(false)
	if err != nil {
		return fmt.Errorf("lock storage root: %w", err)
	}
	defer release()

	return atomicWriteFile(path, data, 0644)
}

func (f *FileStorage) ListArtifacts(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() || !match.IsArtifactName(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *FileStorage) DeleteAndRecreate(root string) error {
	release, err := f.lock.acquire(true)
	if err != nil {
		return fmt.Errorf("lock storage root: %w", err)
	}
	defer release()

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove %s: %w", root, err)
	}
	return os.MkdirAll(root, 0755)
}

func (f *FileStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// atomicWriteFile writes data to a temp file in the target directory and renames it over
// filename, so readers see either the old or the new content.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	var success bool
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	} else if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	} else if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	} else if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	} else if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}

// CheckWritable creates root if needed and verifies a file can be written inside it.
func CheckWritable(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("storage root %s: %w", root, err)
	}
	probe, err := os.CreateTemp(root, ".mockrec-probe-*")
	if err != nil {
		return fmt.Errorf("storage root %s is not writable: %w", root, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
