package localstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Dir stores each key as a JSON file inside a directory.
type Dir struct {
	Path string
}

// NewDir creates the directory if needed and returns a store rooted at it.
func NewDir(path string) (*Dir, error) {
	if path == "" {
		return nil, errors.New("localstore: directory is required")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Dir{Path: path}, nil
}

func (d *Dir) file(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("localstore: invalid key %q", key)
	}
	return filepath.Join(d.Path, key+".json"), nil
}

func (d *Dir) Get(_ context.Context, key string) ([]byte, error) {
	name, err := d.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set replaces the value atomically via a temp file and rename.
func (d *Dir) Set(_ context.Context, key string, value []byte) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.Path, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (d *Dir) Delete(_ context.Context, key string) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
