// Package fsops abstracts the filesystem mutations performed on duplicates
// so tests can prove that dry runs never touch the disk.
package fsops

import "io/fs"

// Deleter abstracts filesystem delete operations
type Deleter interface {
	Remove(path string) error
}

// Mover relocates a file. Implementations must not overwrite an existing
// destination.
type Mover interface {
	Move(src, dst string) error
	MkdirAll(dir string, perm fs.FileMode) error
}

// Ops is everything the cleaner needs.
type Ops interface {
	Deleter
	Mover
}
