package store

import (
	"github.com/google/btree"
)

// fileRecord binds a file name to its block and owning directory.
type fileRecord struct {
	block BlockID
	dir   string
}

// directory is an entry set plus the directory it was created in.
type directory struct {
	parent  string
	entries *btree.BTreeG[string]
}

func newDirectory(parent string) *directory {
	return &directory{
		parent:  parent,
		entries: btree.NewG[string](btreeDegree, func(a, b string) bool { return a < b }),
	}
}

func (d *directory) add(name string) {
	d.entries.ReplaceOrInsert(name)
}

func (d *directory) remove(name string) {
	d.entries.Delete(name)
}

func (d *directory) names() []string {
	names := make([]string, 0, d.entries.Len())
	d.entries.Ascend(func(name string) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (d *directory) empty() bool {
	return d.entries.Len() == 0
}

// EntryKind tells files and directories apart.
type EntryKind int

const (
	// KindFile is a file bound to one block
	KindFile EntryKind = iota
	// KindDirectory is a directory
	KindDirectory
)

// String returns "file" or "directory"
func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Entry describes a name in the namespace.
type Entry struct {
	Name string
	Kind EntryKind
	// Parent is the owning directory. Empty for the root.
	Parent string
	// Block is only meaningful for files.
	Block BlockID
	// Size is the payload length for files and the entry count for directories.
	Size int
}

// Usage reports block pool occupancy.
type Usage struct {
	Total     int `json:"total"`
	Free      int `json:"free"`
	Allocated int `json:"allocated"`
}
