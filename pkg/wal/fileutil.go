package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// FileRotator handles atomic file rotation for WAL files.
// It ensures safe file replacement with recovery on failure.
type FileRotator struct {
	path       string
	file       *os.File
	writer     *bufio.Writer
	bufferSize int
}

// NewFileRotator creates a new file rotator for the given path.
// bufferSize controls the bufio.Writer buffer size (0 = default).
func NewFileRotator(path string, bufferSize int) *FileRotator {
	return &FileRotator{
		path:       path,
		bufferSize: bufferSize,
	}
}

// Open opens or creates the file for appending.
func (fr *FileRotator) Open() error {
	file, err := os.OpenFile(fr.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fr.path, err)
	}
	fr.attach(file)
	return nil
}

func (fr *FileRotator) attach(file *os.File) {
	fr.file = file
	if fr.bufferSize > 0 {
		fr.writer = bufio.NewWriterSize(file, fr.bufferSize)
	} else {
		fr.writer = bufio.NewWriter(file)
	}
}

// File returns the underlying file handle.
func (fr *FileRotator) File() *os.File {
	return fr.file
}

// Writer returns the buffered writer.
func (fr *FileRotator) Writer() *bufio.Writer {
	return fr.writer
}

// Flush flushes the buffered writer.
func (fr *FileRotator) Flush() error {
	if fr.writer == nil {
		return nil
	}
	return fr.writer.Flush()
}

// Sync flushes the buffer and syncs the file to disk.
func (fr *FileRotator) Sync() error {
	if err := fr.Flush(); err != nil {
		return err
	}
	if fr.file == nil {
		return nil
	}
	return fr.file.Sync()
}

// Close flushes, syncs, and closes the file. The file is closed even when
// the sync fails; the sync error is returned.
func (fr *FileRotator) Close() error {
	if fr.file == nil {
		return nil
	}
	syncErr := fr.Sync()
	closeErr := fr.file.Close()
	fr.file = nil
	fr.writer = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// Rotate atomically replaces the current file with a new empty file.
// On failure, the rotator attempts to recover to the original file.
func (fr *FileRotator) Rotate() error {
	if fr.file == nil {
		return fmt.Errorf("no file to rotate")
	}

	if err := fr.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotate: %w", err)
	}

	newPath := fr.path + ".new"
	newFile, err := os.OpenFile(newPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	closeErr := fr.file.Close()

	if err := os.Rename(newPath, fr.path); err != nil {
		newFile.Close()
		if oldFile, reopenErr := os.OpenFile(fr.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644); reopenErr == nil {
			fr.attach(oldFile)
		}
		return fmt.Errorf("failed to rename file: %w (close error: %v)", err, closeErr)
	}

	fr.attach(newFile)
	return nil
}

// WriteFileAtomic writes data to a temporary file, syncs it and renames it
// over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}

	return syncDir(filepath.Dir(path))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// TruncateFile cuts path to size bytes and syncs it. It uses its own handle
// so it works even when the writer's handle has failed.
func TruncateFile(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSize returns the size of a file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
