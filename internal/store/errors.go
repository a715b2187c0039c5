// Package store implements the in-memory block store: a fixed pool of
// blocks, the allocator over it, and the file/directory namespace layered
// on top.
//
// This file contains error types and error handling utilities.
package store

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

var (
	// ErrOutOfSpace indicates every block is allocated
	ErrOutOfSpace = errors.New("no free block available")

	// ErrNotAllocated indicates a block operation on a free or unknown block
	ErrNotAllocated = errors.New("block is not allocated")

	// ErrDirectoryNotFound indicates the directory does not exist
	ErrDirectoryNotFound = errors.New("directory does not exist")

	// ErrFileAlreadyExists indicates the file name is taken somewhere in the namespace
	ErrFileAlreadyExists = errors.New("file already exists")

	// ErrFileNotFound indicates the file does not exist
	ErrFileNotFound = errors.New("file does not exist")

	// ErrDirectoryAlreadyExists indicates the directory name is taken
	ErrDirectoryAlreadyExists = errors.New("directory already exists")

	// ErrCannotRemoveRoot indicates an attempt to remove "/"
	ErrCannotRemoveRoot = errors.New("cannot remove the root directory")

	// ErrDirectoryNotEmpty indicates attempt to remove non-empty directory
	ErrDirectoryNotEmpty = errors.New("directory is not empty")

	// ErrCannotReturnToRoot indicates a direct navigate to "/" after leaving it
	ErrCannotReturnToRoot = errors.New("cannot navigate back to the root directory")

	// ErrInvalidBlockCount indicates a store was requested with no blocks
	ErrInvalidBlockCount = errors.New("total blocks must be positive")
)

var errorCodes = map[error]platformerrors.ErrorCode{
	ErrOutOfSpace:             platformerrors.CodeUnavailable,
	ErrNotAllocated:           platformerrors.CodeInvalidInput,
	ErrDirectoryNotFound:      platformerrors.CodeNotFound,
	ErrFileAlreadyExists:      platformerrors.CodeAlreadyExists,
	ErrFileNotFound:           platformerrors.CodeNotFound,
	ErrDirectoryAlreadyExists: platformerrors.CodeAlreadyExists,
	ErrCannotRemoveRoot:       platformerrors.CodeForbidden,
	ErrDirectoryNotEmpty:      platformerrors.CodeConflict,
	ErrCannotReturnToRoot:     platformerrors.CodeForbidden,
	ErrInvalidBlockCount:      platformerrors.CodeInvalidInput,
}

// Error wraps a store failure with the operation and the affected name.
// It unwraps to one of the sentinel errors above and satisfies
// platformerrors.PlatformError, so callers can switch on either.
type Error struct {
	Op   string // Operation that failed (e.g., "create_file", "navigate")
	Name string // Affected file, directory or block
	Err  error  // Underlying sentinel error
}

var _ platformerrors.PlatformError = (*Error)(nil)

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the platform error code for the underlying sentinel.
func (e *Error) Code() platformerrors.ErrorCode {
	if code, ok := errorCodes[e.Err]; ok {
		return code
	}
	return platformerrors.CodeInternal
}

// Classification reports OutOfSpace as retryable, since freeing a block lets
// the same call succeed. Everything else needs corrected input.
func (e *Error) Classification() platformerrors.ErrorClassification {
	if errors.Is(e.Err, ErrOutOfSpace) {
		return platformerrors.ClassificationRetryable
	}
	return platformerrors.ClassificationPermanent
}

// Message returns the human-readable message without the operation prefix.
func (e *Error) Message() string {
	return e.Err.Error()
}

// Context returns the operation and name as error metadata.
func (e *Error) Context() map[string]interface{} {
	ctx := map[string]interface{}{"op": e.Op}
	if e.Name != "" {
		ctx["name"] = e.Name
	}
	return ctx
}

// newError creates a new Error with the given operation, name, and sentinel
func newError(op string, name string, err error) *Error {
	storeErr := &Error{
		Op:   op,
		Name: name,
		Err:  err,
	}
	errLogger.Debug("Created new store error: %v", storeErr)
	return storeErr
}

// Operation names used in errors and logs
const (
	OpAllocateBlock   = "allocate_block"
	OpFreeBlock       = "free_block"
	OpWriteBlock      = "write_block"
	OpReadBlock       = "read_block"
	OpCreateFile      = "create_file"
	OpViewFile        = "view_file"
	OpEditFile        = "edit_file"
	OpRemoveFile      = "remove_file"
	OpCreateDirectory = "create_directory"
	OpRemoveDirectory = "remove_directory"
	OpListDirectory   = "list_directory"
	OpNavigate        = "navigate"
	OpStat            = "stat"
	OpLookup          = "lookup"
	OpNew             = "new"
)
