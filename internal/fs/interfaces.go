// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Node represents a filesystem node (file or directory)
type Node interface {
	fs.Node
}

// Directory represents a writable directory backed by the store
type Directory interface {
	Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
	fs.NodeMkdirer
	fs.NodeCreater
	fs.NodeRemover
}

// FileInterface represents a file backed by one store block
type FileInterface interface {
	Node
	fs.NodeSetattrer
	fs.NodeOpener
	fs.NodeFsyncer
}

// FileHandleInterface represents an open file handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReadAller
	fs.HandleWriter
	fs.HandleFlusher
	fs.HandleReleaser
}

// ReadOnlyDirectory represents the synthetic block listing
type ReadOnlyDirectory interface {
	Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
}

var (
	_ fs.FS               = (*BlockFS)(nil)
	_ Directory           = (*Dir)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
	_ ReadOnlyDirectory   = (*BlocksDir)(nil)
	_ fs.NodeOpener       = (*BlockFile)(nil)
	_ fs.HandleReadAller  = (*BlockFile)(nil)
)
