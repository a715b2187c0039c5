package store

import (
	"strings"
)

// RootDirectory is the name of the directory that always exists.
const RootDirectory = "/"

// IsRoot returns true if name is the root directory "/"
func IsRoot(name string) bool {
	return name == RootDirectory
}

// ParentDirectory strips the last "/"-separated segment of a directory name.
// Names without a parent segment (including plain names like "docs") resolve
// to the root. Root is its own parent.
func ParentDirectory(name string) string {
	if IsRoot(name) {
		return RootDirectory
	}
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return RootDirectory
	}
	parent := name[:idx]
	pathLogger.Trace("Getting parent directory: %q -> %q", name, parent)
	return parent
}
