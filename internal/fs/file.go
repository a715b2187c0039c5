package fs

import (
	"context"
	"strings"
	"syscall"

	"blockfs/internal/logging"
	"blockfs/internal/store"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is a FUSE node for one store file. Its content is the payload of
// the single block the file is bound to.
type File struct {
	fs   *BlockFS
	dir  string // Directory the file was created in
	name string
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	entry, err := f.fs.store.ChildOfKind(f.dir, f.name, store.KindFile)
	if err != nil {
		fileLogger.Warn("File not found: %q", f.name)
		return ToFuseError(err)
	}

	a.Mode = 0644
	a.Size = safeIntToUint64(entry.Size)
	a.Blocks = 1
	f.fs.setCommonAttr(a)

	fileLogger.Trace("File attributes: name=%q, size=%d, block=%d", f.name, a.Size, entry.Block)
	return nil
}

// Open implements the NodeOpener interface.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening file %q with flags %v", f.name, req.Flags)

	if _, err := f.fs.store.ViewFile(f.name); err != nil {
		return nil, ToFuseError(err)
	}

	resp.Flags |= fuse.OpenDirectIO
	return &FileHandle{fs: f.fs, name: f.name}, nil
}

// Setattr implements the NodeSetattrer interface. Only size changes touch
// the store: the payload is truncated or padded with NUL bytes.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		fileLogger.Debug("Resizing file %q to %d bytes", f.name, req.Size)
		if req.Size > uint64(f.fs.maxFileSize()) {
			fileLogger.Warn("Refusing to resize %q to %d bytes", f.name, req.Size)
			return syscall.EFBIG
		}

		f.fs.mu.Lock()
		content, err := f.fs.store.ViewFile(f.name)
		if err == nil {
			err = f.fs.store.EditFile(f.name, resize(content, int(req.Size)))
		}
		f.fs.mu.Unlock()

		if err != nil {
			fileLogger.Error("Failed to resize %q: %v", f.name, err)
			return ToFuseError(err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

// Fsync implements the NodeFsyncer interface. Writes land in the store
// immediately, so there is nothing to flush.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

// FileHandle is an open file. It holds no state of its own; every read and
// write goes to the store.
type FileHandle struct {
	fs   *BlockFS
	name string
}

// ReadAll implements the HandleReadAller interface.
func (fh *FileHandle) ReadAll(_ context.Context) ([]byte, error) {
	content, err := fh.fs.store.ViewFile(fh.name)
	if err != nil {
		return nil, ToFuseError(err)
	}
	fileLogger.Trace("Read %d bytes from %q", len(content), fh.name)
	return []byte(content), nil
}

// Write implements the HandleWriter interface. The new payload is the old
// one with req.Data spliced in at req.Offset, written back in one EditFile.
func (fh *FileHandle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to %q at offset %d", len(req.Data), fh.name, req.Offset)

	if req.Offset < 0 {
		return syscall.EINVAL
	}
	if req.Offset > fh.fs.maxFileSize()-int64(len(req.Data)) {
		fileLogger.Warn("Refusing write to %q ending past %d bytes", fh.name, fh.fs.maxFileSize())
		return syscall.EFBIG
	}

	fh.fs.mu.Lock()
	defer fh.fs.mu.Unlock()

	content, err := fh.fs.store.ViewFile(fh.name)
	if err != nil {
		return ToFuseError(err)
	}
	if err := fh.fs.store.EditFile(fh.name, splice(content, int(req.Offset), req.Data)); err != nil {
		fileLogger.Error("Failed to write %q: %v", fh.name, err)
		return ToFuseError(err)
	}

	resp.Size = len(req.Data)
	return nil
}

// Flush implements the HandleFlusher interface.
func (fh *FileHandle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	return nil
}

// Release implements the HandleReleaser interface.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fileLogger.Debug("Closing file %q", fh.name)
	return nil
}

// resize truncates content to size or pads it with NUL bytes.
func resize(content string, size int) string {
	if size <= len(content) {
		return content[:size]
	}
	return content + strings.Repeat("\x00", size-len(content))
}

// splice overwrites content with data starting at offset, padding any gap
// with NUL bytes.
func splice(content string, offset int, data []byte) string {
	if offset > len(content) {
		content = resize(content, offset)
	}
	end := offset + len(data)
	if end >= len(content) {
		return content[:offset] + string(data)
	}
	return content[:offset] + string(data) + content[end:]
}
