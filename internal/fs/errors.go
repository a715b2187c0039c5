// Package fs exposes a BlockStore as a FUSE filesystem.
//
// This file contains the translation from store errors to FUSE errnos.
package fs

import (
	"errors"
	"syscall"

	"blockfs/internal/logging"
	"blockfs/internal/store"
)

var (
	errLogger = logging.GetLogger().WithPrefix("fuse-error")
)

// ToFuseError converts a store error to the errno FUSE expects.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
	errLogger.Trace("Converting store error to FUSE error: %v", storeErr)

	switch {
	case errors.Is(storeErr, store.ErrFileNotFound),
		errors.Is(storeErr, store.ErrDirectoryNotFound):
		return syscall.ENOENT
	case errors.Is(storeErr, store.ErrFileAlreadyExists),
		errors.Is(storeErr, store.ErrDirectoryAlreadyExists):
		return syscall.EEXIST
	case errors.Is(storeErr, store.ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(storeErr, store.ErrCannotRemoveRoot),
		errors.Is(storeErr, store.ErrCannotReturnToRoot):
		return syscall.EPERM
	case errors.Is(storeErr, store.ErrOutOfSpace):
		return syscall.ENOSPC
	case errors.Is(storeErr, store.ErrNotAllocated):
		return syscall.EINVAL
	default:
		errLogger.Debug("Unmapped store error, returning EIO: %v", storeErr)
		return syscall.EIO
	}
}
