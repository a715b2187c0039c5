package fs

import (
	"context"
	"os"
	"strconv"
	"syscall"

	"blockfs/internal/logging"
	"blockfs/internal/store"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// blocksDirName is the synthetic root entry listing allocated blocks. It
// shadows any store entry of the same name in the root.
const blocksDirName = ".blocks"

var (
	blocksLogger = logging.GetLogger().WithPrefix("blocks")
)

// BlocksDir is the read-only .blocks directory. Each allocated block shows
// up as a file named by its id.
type BlocksDir struct {
	fs *BlockFS
}

func (d *BlocksDir) Attr(_ context.Context, a *fuse.Attr) error {
	usage := d.fs.store.Usage()
	a.Mode = os.ModeDir | 0555
	a.Size = safeIntToUint64(usage.Allocated)
	d.fs.setCommonAttr(a)
	return nil
}

func (d *BlocksDir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	blocksLogger.Trace("Looking up block %q", name)

	n, err := strconv.Atoi(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	id := store.BlockID(n)
	if !d.fs.store.IsAllocated(id) {
		return nil, syscall.ENOENT
	}
	return &BlockFile{fs: d.fs, id: id}, nil
}

func (d *BlocksDir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	ids := d.fs.store.AllocatedBlocks()
	entries := make([]fuse.Dirent, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fuse.Dirent{Name: id.String(), Type: fuse.DT_File})
	}
	blocksLogger.Debug("Listing %d allocated blocks", len(entries))
	return entries, nil
}

// BlockFile exposes the raw payload of one allocated block.
type BlockFile struct {
	fs *BlockFS
	id store.BlockID
}

func (b *BlockFile) Attr(_ context.Context, a *fuse.Attr) error {
	data, err := b.fs.store.ReadBlock(b.id)
	if err != nil {
		return ToFuseError(err)
	}
	a.Mode = 0444
	a.Size = safeIntToUint64(len(data))
	a.Blocks = 1
	b.fs.setCommonAttr(a)
	return nil
}

// Open rejects write access; blocks change only through their files.
func (b *BlockFile) Open(_ context.Context, req *fuse.OpenRequest, _ *fuse.OpenResponse) (fusefs.Handle, error) {
	flags := int(req.Flags)
	if flags&os.O_WRONLY != 0 || flags&os.O_RDWR != 0 {
		blocksLogger.Warn("Attempted write access to block %d", b.id)
		return nil, syscall.EPERM
	}
	return b, nil
}

func (b *BlockFile) ReadAll(_ context.Context) ([]byte, error) {
	data, err := b.fs.store.ReadBlock(b.id)
	if err != nil {
		return nil, ToFuseError(err)
	}
	return []byte(data), nil
}
