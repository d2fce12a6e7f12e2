package atomicio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Pending is a fully written temp file waiting to be renamed into place.
type Pending struct {
	path    string
	tmpPath string
	done    bool
}

// Stage streams content produced by fn into a temp file next to path without
// touching path. The caller must Commit or Discard the result. On error the
// temp file is already removed.
func Stage(path string, fn func(w io.Writer) error) (*Pending, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	return &Pending{path: path, tmpPath: tmpPath}, nil
}

// Path returns the destination path
func (p *Pending) Path() string { return p.path }

// Commit renames the temp file over the destination. A failed rename removes
// the temp file.
func (p *Pending) Commit() error {
	if p.done {
		return fmt.Errorf("%s already committed or discarded", p.path)
	}
	p.done = true
	if err := os.Rename(p.tmpPath, p.path); err != nil {
		os.Remove(p.tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Discard removes the temp file. It is a no-op after Commit.
func (p *Pending) Discard() {
	if p.done {
		return
	}
	p.done = true
	os.Remove(p.tmpPath)
}

// WriteAtomic streams content produced by fn into a temp file next to path
// and renames it into place. On any error the temp file is removed and path
// is left untouched.
func WriteAtomic(path string, fn func(w io.Writer) error) error {
	p, err := Stage(path, fn)
	if err != nil {
		return err
	}
	return p.Commit()
}

// StageJSON stages indented JSON for path
func StageJSON(path string, v any) (*Pending, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	return Stage(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFileAtomic writes data to file atomically
func WriteFileAtomic(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
