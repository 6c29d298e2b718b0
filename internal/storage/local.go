package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalProvider stores blobs as files below Root. Writes go through a
// temporary file and rename so readers never observe a partial blob.
type LocalProvider struct {
	Root string
}

// NewLocalProvider creates root (0700) if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local root is empty", ErrInvalidConfig)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", ErrStorageFailure, abs, err)
	}
	return &LocalProvider{Root: abs}, nil
}

func (p *LocalProvider) Backend() string { return BackendLocal }

func (p *LocalProvider) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(p.Root, filepath.FromSlash(key)), nil
}

// Upload writes data under key and returns the absolute file path.
func (p *LocalProvider) Upload(ctx context.Context, key string, data []byte, _ string) (loc string, err error) {
	defer func() { observe(BackendLocal, "upload", err) }()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := p.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return "", fmt.Errorf("%w: mkdir %s: %v", ErrStorageFailure, key, err)
	}
	err = atomicWriteFile(target, ".upload-*.tmp", 0o600, func(f *os.File) error {
		_, werr := f.Write(data)
		return werr
	})
	if err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrStorageFailure, key, err)
	}
	return target, nil
}

func (p *LocalProvider) Download(ctx context.Context, key string) (data []byte, err error) {
	defer func() { observe(BackendLocal, "download", err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := p.path(key)
	if err != nil {
		return nil, err
	}
	data, err = os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageFailure, key, err)
	}
	return data, nil
}

// Delete removes the blob. Deleting a missing key is not an error.
func (p *LocalProvider) Delete(ctx context.Context, key string) (err error) {
	defer func() { observe(BackendLocal, "delete", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrStorageFailure, key, err)
	}
	return nil
}

// atomicWriteFile writes to a temp file in the target directory, syncs it
// and renames it over targetPath.
func atomicWriteFile(targetPath, tempPattern string, perm os.FileMode, write func(*os.File) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(targetPath), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := write(tempFile); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}
