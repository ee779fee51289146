package conversion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Scratch is the private working directory of one invocation. Fixed names
// such as header.html or url.pdf are unique per invocation because each
// invocation gets its own directory.
type Scratch struct {
	Dir string
}

// NewScratch creates root/<id>.
func NewScratch(root, id string) (*Scratch, error) {
	dir := filepath.Join(root, "pdf-from-html-"+id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Path returns the scratch path for name.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Subdir creates and returns the scratch subdirectory name.
func (s *Scratch) Subdir(name string) (string, error) {
	dir := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// WriteFile replaces path with content. A missing previous file is fine.
func (s *Scratch) WriteFile(path, content string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Cleanup removes the directory and everything in it.
func (s *Scratch) Cleanup() error {
	return os.RemoveAll(s.Dir)
}
