// Package storage defines the inbox file-system abstraction.
package storage

import "time"

// File describes a payload waiting in the inbox.
type File struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for inbox file operations.
// Paths are relative to the inbox root.
type Provider interface {
	// List returns the .json files directly under dir, oldest first.
	List(dir string) ([]File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
	// Root returns the absolute inbox directory.
	Root() string
}
