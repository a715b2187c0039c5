package store

import (
	"sync"

	"blockfs/internal/logging"
)

var (
	storeLogger = logging.GetLogger().WithPrefix("store")
	errLogger   = logging.GetLogger().WithPrefix("error")
	pathLogger  = logging.GetLogger().WithPrefix("path")
)

// BlockStore owns a fixed pool of blocks and the directory/file namespace
// mapped onto it. File names are unique across the whole store, not per
// directory. Every method is atomic with respect to the others.
//
// The store does not track a current directory; namespace operations take
// the directory explicitly. See Session for the navigation context.
type BlockStore struct {
	pool  *blockPool
	files map[string]fileRecord
	dirs  map[string]*directory
	mu    sync.RWMutex // Protects everything above
}

// New creates a store with totalBlocks free blocks and an empty root.
func New(totalBlocks int) (*BlockStore, error) {
	if totalBlocks <= 0 {
		return nil, newError(OpNew, "", ErrInvalidBlockCount)
	}

	storeLogger.Info("Creating block store with %d blocks", totalBlocks)
	root := newDirectory("")
	return &BlockStore{
		pool:  newBlockPool(totalBlocks),
		files: make(map[string]fileRecord),
		dirs:  map[string]*directory{RootDirectory: root},
	}, nil
}

// TotalBlocks returns the pool size fixed at construction.
func (s *BlockStore) TotalBlocks() int {
	return s.pool.total
}

// AllocateBlock takes a free block and marks it allocated with no payload.
func (s *BlockStore) AllocateBlock() (BlockID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocateLocked()
}

func (s *BlockStore) allocateLocked() (BlockID, error) {
	id, ok := s.pool.allocate()
	if !ok {
		storeLogger.Warn("Allocation failed: all %d blocks in use", s.pool.total)
		return 0, newError(OpAllocateBlock, "", ErrOutOfSpace)
	}
	storeLogger.Trace("Allocated block %d (%d free)", id, s.pool.freeCount())
	return id, nil
}

// FreeBlock drops the block's payload and returns it to the free set.
func (s *BlockStore) FreeBlock(id BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeLocked(id)
}

func (s *BlockStore) freeLocked(id BlockID) error {
	if !s.pool.release(id) {
		return newError(OpFreeBlock, id.String(), ErrNotAllocated)
	}
	storeLogger.Trace("Freed block %d (%d free)", id, s.pool.freeCount())
	return nil
}

// WriteBlock replaces the payload of an allocated block.
func (s *BlockStore) WriteBlock(id BlockID, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(id, data)
}

func (s *BlockStore) writeLocked(id BlockID, data string) error {
	if !s.pool.write(id, data) {
		return newError(OpWriteBlock, id.String(), ErrNotAllocated)
	}
	storeLogger.Trace("Wrote %d bytes to block %d", len(data), id)
	return nil
}

// ReadBlock returns the payload of an allocated block, empty if never written.
func (s *BlockStore) ReadBlock(id BlockID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(id)
}

func (s *BlockStore) readLocked(id BlockID) (string, error) {
	data, ok := s.pool.read(id)
	if !ok {
		return "", newError(OpReadBlock, id.String(), ErrNotAllocated)
	}
	return data, nil
}

// IsAllocated reports whether id is currently in the allocated set.
func (s *BlockStore) IsAllocated(id BlockID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.isAllocated(id)
}

// AllocatedBlocks returns the allocated block ids in ascending order.
func (s *BlockStore) AllocatedBlocks() []BlockID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.allocatedIDs()
}

// Usage reports how many blocks are free and allocated.
func (s *BlockStore) Usage() Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usageLocked()
}

func (s *BlockStore) usageLocked() Usage {
	free := s.pool.freeCount()
	return Usage{
		Total:     s.pool.total,
		Free:      free,
		Allocated: s.pool.total - free,
	}
}

// CreateFile binds name to a fresh block inside dir and writes content to it
// when content is non-empty. Nothing is mutated unless every check passes.
func (s *BlockStore) CreateFile(dir, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeLogger.Debug("Creating file %q in %q", name, dir)
	parent, ok := s.dirs[dir]
	if !ok {
		return newError(OpCreateFile, dir, ErrDirectoryNotFound)
	}
	if _, exists := s.files[name]; exists {
		return newError(OpCreateFile, name, ErrFileAlreadyExists)
	}

	block, err := s.allocateLocked()
	if err != nil {
		return newError(OpCreateFile, name, ErrOutOfSpace)
	}
	s.files[name] = fileRecord{block: block, dir: dir}
	parent.add(name)

	if content != "" {
		// The block was allocated above under the same lock.
		_ = s.writeLocked(block, content)
	}

	storeLogger.Info("Created file %q in %q on block %d", name, dir, block)
	return nil
}

// ViewFile returns the content of the block bound to name.
func (s *BlockStore) ViewFile(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[name]
	if !ok {
		return "", newError(OpViewFile, name, ErrFileNotFound)
	}
	return s.readLocked(rec.block)
}

// EditFile overwrites the content of the block bound to name.
func (s *BlockStore) EditFile(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[name]
	if !ok {
		return newError(OpEditFile, name, ErrFileNotFound)
	}
	storeLogger.Debug("Editing file %q (%d bytes)", name, len(data))
	return s.writeLocked(rec.block, data)
}

// RemoveFile frees the file's block, drops the binding and removes the name
// from the directory the file was created in.
func (s *BlockStore) RemoveFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[name]
	if !ok {
		return newError(OpRemoveFile, name, ErrFileNotFound)
	}
	if err := s.freeLocked(rec.block); err != nil {
		// A live file always holds an allocated block.
		storeLogger.Error("File %q bound to unallocated block %d", name, rec.block)
		return err
	}
	delete(s.files, name)
	if owner, ok := s.dirs[rec.dir]; ok {
		owner.remove(name)
	}

	storeLogger.Info("Removed file %q from %q", name, rec.dir)
	return nil
}

// CreateDirectory creates an empty directory name inside parent.
func (s *BlockStore) CreateDirectory(parent, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeLogger.Debug("Creating directory %q in %q", name, parent)
	if _, exists := s.dirs[name]; exists {
		return newError(OpCreateDirectory, name, ErrDirectoryAlreadyExists)
	}
	owner, ok := s.dirs[parent]
	if !ok {
		return newError(OpCreateDirectory, parent, ErrDirectoryNotFound)
	}

	s.dirs[name] = newDirectory(parent)
	owner.add(name)

	storeLogger.Info("Created directory %q in %q", name, parent)
	return nil
}

// RemoveDirectory deletes an empty directory and removes it from the
// directory it was created in. The root can never be removed.
func (s *BlockStore) RemoveDirectory(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, ok := s.dirs[name]
	if !ok {
		return newError(OpRemoveDirectory, name, ErrDirectoryNotFound)
	}
	if IsRoot(name) {
		return newError(OpRemoveDirectory, name, ErrCannotRemoveRoot)
	}
	if !dir.empty() {
		storeLogger.Debug("Directory %q still holds %d entries", name, dir.entries.Len())
		return newError(OpRemoveDirectory, name, ErrDirectoryNotEmpty)
	}

	delete(s.dirs, name)
	if owner, ok := s.dirs[dir.parent]; ok {
		owner.remove(name)
	}

	storeLogger.Info("Removed directory %q from %q", name, dir.parent)
	return nil
}

// ListDirectory returns the entry names of dir. Callers must not depend on
// the order.
func (s *BlockStore) ListDirectory(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dirs[dir]
	if !ok {
		return nil, newError(OpListDirectory, dir, ErrDirectoryNotFound)
	}
	names := d.names()
	storeLogger.Trace("Directory %q contains %d entries", dir, len(names))
	return names, nil
}

// Navigate validates a move from the directory from to the directory to and
// returns the new current directory. Once away from the root, the root is
// reachable only through NavigateBack.
func (s *BlockStore) Navigate(from, to string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dirs[to]; !ok {
		return from, newError(OpNavigate, to, ErrDirectoryNotFound)
	}
	if IsRoot(to) && !IsRoot(from) {
		return from, newError(OpNavigate, to, ErrCannotReturnToRoot)
	}
	storeLogger.Debug("Navigating %q -> %q", from, to)
	return to, nil
}

// NavigateBack returns the parent of from by stripping its last
// "/"-separated segment. It never fails.
func (s *BlockStore) NavigateBack(from string) string {
	parent := ParentDirectory(from)
	storeLogger.Debug("Navigating back %q -> %q", from, parent)
	return parent
}

// Stat describes name. When name is both a directory and a file, the
// directory is reported.
func (s *BlockStore) Stat(name string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dir, ok := s.dirs[name]; ok {
		return Entry{
			Name:   name,
			Kind:   KindDirectory,
			Parent: dir.parent,
			Size:   dir.entries.Len(),
		}, nil
	}
	if rec, ok := s.files[name]; ok {
		data, _ := s.pool.read(rec.block)
		return Entry{
			Name:   name,
			Kind:   KindFile,
			Parent: rec.dir,
			Block:  rec.block,
			Size:   len(data),
		}, nil
	}
	return Entry{}, newError(OpStat, name, ErrFileNotFound)
}

// Child resolves name as an entry of parent. A directory created in parent
// wins over a file created there; names owned by other directories do not
// resolve.
func (s *BlockStore) Child(parent, name string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.childLocked(parent, name, KindDirectory); ok {
		return entry, nil
	}
	if entry, ok := s.childLocked(parent, name, KindFile); ok {
		return entry, nil
	}
	return Entry{}, newError(OpLookup, name, ErrFileNotFound)
}

// ChildOfKind is Child restricted to one kind.
func (s *BlockStore) ChildOfKind(parent, name string, kind EntryKind) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.childLocked(parent, name, kind); ok {
		return entry, nil
	}
	if kind == KindDirectory {
		return Entry{}, newError(OpLookup, name, ErrDirectoryNotFound)
	}
	return Entry{}, newError(OpLookup, name, ErrFileNotFound)
}

func (s *BlockStore) childLocked(parent, name string, kind EntryKind) (Entry, bool) {
	if kind == KindDirectory {
		dir, ok := s.dirs[name]
		if !ok || IsRoot(name) || dir.parent != parent {
			return Entry{}, false
		}
		return Entry{
			Name:   name,
			Kind:   KindDirectory,
			Parent: parent,
			Size:   dir.entries.Len(),
		}, true
	}

	rec, ok := s.files[name]
	if !ok || rec.dir != parent {
		return Entry{}, false
	}
	data, _ := s.pool.read(rec.block)
	return Entry{
		Name:   name,
		Kind:   KindFile,
		Parent: parent,
		Block:  rec.block,
		Size:   len(data),
	}, true
}
