package fs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blockfs/internal/logging"
	"blockfs/internal/store"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("fuse")
)

// Options control how the filesystem presents itself.
type Options struct {
	FSName     string // Name shown in the mount table
	AllowOther bool   // Let users other than the mounter access the mount
	UID        uint32 // Owner reported for every node
	GID        uint32 // Group reported for every node
	BlockSize  uint32 // Preferred I/O size reported in attributes
	MaxBlocks  uint32 // File size limit in units of BlockSize
}

// defaultMaxBlocks caps a file at 1 MiB with the default block size.
const defaultMaxBlocks = 256

// BlockFS serves a BlockStore over FUSE. Each FUSE directory node is bound
// to one store directory; the store's global file names become the leaf
// names.
type BlockFS struct {
	store   *store.BlockStore
	opts    Options
	started time.Time  // Reported as every node's timestamps
	mu      sync.Mutex // Serializes read-modify-write on file payloads
}

// NewBlockFS creates a FUSE filesystem over st.
func NewBlockFS(st *store.BlockStore, opts Options) *BlockFS {
	if opts.FSName == "" {
		opts.FSName = "blockfs"
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = 4096
	}
	if opts.MaxBlocks == 0 {
		opts.MaxBlocks = defaultMaxBlocks
	}
	vfsLogger.Info("Creating FUSE filesystem %q", opts.FSName)
	vfsLogger.Debug("UID: %d, GID: %d, block size: %d", opts.UID, opts.GID, opts.BlockSize)

	return &BlockFS{
		store:   st,
		opts:    opts,
		started: time.Now(),
	}
}

// maxFileSize is the largest payload a write or truncate may produce.
func (bfs *BlockFS) maxFileSize() int64 {
	return int64(bfs.opts.BlockSize) * int64(bfs.opts.MaxBlocks)
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (bfs *BlockFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: bfs, name: store.RootDirectory}, nil
}

func (bfs *BlockFS) mountOptions() []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName(bfs.opts.FSName),
		fuse.Subtype("blockfs"),
		fuse.DefaultPermissions(),
	}
	if bfs.opts.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	return opts
}

// Serve mounts the filesystem at mountPoint and serves requests until ctx
// is cancelled or the kernel drops the connection. On cancellation it
// unmounts before returning.
func (bfs *BlockFS) Serve(ctx context.Context, mountPoint string) error {
	vfsLogger.Info("Mounting filesystem at %s", mountPoint)

	c, err := fuse.Mount(mountPoint, bfs.mountOptions()...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	defer c.Close()

	served := make(chan error, 1)
	go func() {
		vfsLogger.Info("Serving filesystem...")
		served <- fusefs.Serve(c, bfs)
	}()

	select {
	case err := <-served:
		if err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
			return fmt.Errorf("serve failed: %w", err)
		}
		vfsLogger.Debug("FUSE server stopped")
		return nil
	case <-ctx.Done():
		vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			vfsLogger.Error("Unmount failed: %v", err)
			return fmt.Errorf("unmount failed: %w", err)
		}
		if err := <-served; err != nil {
			return fmt.Errorf("serve failed: %w", err)
		}
		vfsLogger.Info("Unmount completed successfully")
		return nil
	}
}

// setCommonAttr fills ownership and timestamps shared by every node.
func (bfs *BlockFS) setCommonAttr(a *fuse.Attr) {
	a.Uid = bfs.opts.UID
	a.Gid = bfs.opts.GID
	a.BlockSize = bfs.opts.BlockSize
	a.Mtime = bfs.started
	a.Atime = bfs.started
	a.Ctime = bfs.started
}
