package store

// Snapshot is a point-in-time view of the store, shaped for JSON output.
type Snapshot struct {
	// Directory name -> child entry names
	Directories map[string][]string `json:"directories"`

	// File name -> block binding
	Files map[string]FileSnapshot `json:"files"`

	Usage Usage `json:"usage"`
}

// FileSnapshot is the binding of one file.
type FileSnapshot struct {
	Block     BlockID `json:"block"`
	Directory string  `json:"directory"`
	Size      int     `json:"size"`
}

// Snapshot copies the current namespace and pool usage.
func (s *BlockStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Directories: make(map[string][]string, len(s.dirs)),
		Files:       make(map[string]FileSnapshot, len(s.files)),
		Usage:       s.usageLocked(),
	}
	for name, dir := range s.dirs {
		snap.Directories[name] = dir.names()
	}
	for name, rec := range s.files {
		data, _ := s.pool.read(rec.block)
		snap.Files[name] = FileSnapshot{
			Block:     rec.block,
			Directory: rec.dir,
			Size:      len(data),
		}
	}
	storeLogger.Trace("Snapshot taken: %d directories, %d files", len(snap.Directories), len(snap.Files))
	return snap
}
