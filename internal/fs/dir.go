package fs

import (
	"context"
	"os"
	"syscall"

	"blockfs/internal/logging"
	"blockfs/internal/store"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is a FUSE node bound to one store directory.
type Dir struct {
	fs   *BlockFS
	name string
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.name)

	entry, err := d.fs.store.Stat(d.name)
	if err != nil {
		dirLogger.Warn("Directory vanished: %q", d.name)
		return ToFuseError(err)
	}

	a.Mode = os.ModeDir | 0755
	a.Size = safeIntToUint64(entry.Size)
	d.fs.setCommonAttr(a)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
// Only names whose recorded owner is this directory resolve.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.name)

	if store.IsRoot(d.name) && name == blocksDirName {
		dirLogger.Debug("Returning BlocksDir for %s", blocksDirName)
		return &BlocksDir{fs: d.fs}, nil
	}

	entry, err := d.fs.store.Child(d.name, name)
	if err != nil {
		dirLogger.Debug("Path not found: %q in %q", name, d.name)
		return nil, syscall.ENOENT
	}

	if entry.Kind == store.KindDirectory {
		return &Dir{fs: d.fs, name: name}, nil
	}
	return &File{fs: d.fs, dir: d.name, name: name}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.name)

	names, err := d.fs.store.ListDirectory(d.name)
	if err != nil {
		return nil, ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(names)+1)
	if store.IsRoot(d.name) {
		entries = append(entries, fuse.Dirent{Name: blocksDirName, Type: fuse.DT_Dir})
	}

	for _, name := range names {
		entry, childErr := d.fs.store.Child(d.name, name)
		if childErr != nil {
			// Removed between listing and stat.
			dirLogger.Trace("Skipping vanished entry %q", name)
			continue
		}
		dirent := fuse.Dirent{Name: name, Type: fuse.DT_File}
		if entry.Kind == store.KindDirectory {
			dirent.Type = fuse.DT_Dir
		}
		entries = append(entries, dirent)
	}

	dirLogger.Debug("Directory %q contains %d entries", d.name, len(entries))
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface, creating a directory in the store.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating new directory %q in %q", req.Name, d.name)

	if err := d.fs.store.CreateDirectory(d.name, req.Name); err != nil {
		dirLogger.Warn("Mkdir failed: %v", err)
		return nil, ToFuseError(err)
	}
	return &Dir{fs: d.fs, name: req.Name}, nil
}

// Create implements the NodeCreater interface, creating an empty file.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Info("Creating new file %q in %q", req.Name, d.name)

	if err := d.fs.store.CreateFile(d.name, req.Name, ""); err != nil {
		dirLogger.Warn("Create failed: %v", err)
		return nil, nil, ToFuseError(err)
	}

	resp.Flags |= fuse.OpenDirectIO
	f := &File{fs: d.fs, dir: d.name, name: req.Name}
	return f, &FileHandle{fs: d.fs, name: req.Name}, nil
}

// Remove implements the NodeRemover interface, removing a file or directory.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Info("Removing %q from directory %q (isDir=%v)", req.Name, d.name, req.Dir)

	kind := store.KindFile
	if req.Dir {
		kind = store.KindDirectory
	}
	if _, err := d.fs.store.ChildOfKind(d.name, req.Name, kind); err != nil {
		other, otherErr := d.fs.store.Child(d.name, req.Name)
		switch {
		case otherErr != nil:
			return syscall.ENOENT
		case other.Kind == store.KindDirectory:
			return syscall.EISDIR
		default:
			return syscall.ENOTDIR
		}
	}

	var err error
	if req.Dir {
		err = d.fs.store.RemoveDirectory(req.Name)
	} else {
		err = d.fs.store.RemoveFile(req.Name)
	}
	if err != nil {
		dirLogger.Warn("Remove failed: %v", err)
		return ToFuseError(err)
	}

	dirLogger.Info("Successfully removed %q", req.Name)
	return nil
}
