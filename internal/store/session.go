package store

// Session is one caller's navigation context over a BlockStore. It holds
// the current directory, starts at the root, and changes it only through
// Navigate and NavigateBack. Operations that default to "the current
// directory" live here; the store itself always takes directories
// explicitly.
//
// A Session is not safe for concurrent use. Give each caller its own.
type Session struct {
	store   *BlockStore
	current string
}

// NewSession returns a session positioned at the root directory.
func NewSession(store *BlockStore) *Session {
	return &Session{
		store:   store,
		current: RootDirectory,
	}
}

// Store returns the underlying block store.
func (s *Session) Store() *BlockStore {
	return s.store
}

// CurrentDirectory returns the active directory name.
func (s *Session) CurrentDirectory() string {
	return s.current
}

// CreateFile creates name in the current directory.
func (s *Session) CreateFile(name, content string) error {
	return s.store.CreateFile(s.current, name, content)
}

// CreateFileIn creates name in dir, regardless of the current directory.
func (s *Session) CreateFileIn(dir, name, content string) error {
	return s.store.CreateFile(dir, name, content)
}

func (s *Session) ViewFile(name string) (string, error) {
	return s.store.ViewFile(name)
}

func (s *Session) EditFile(name, data string) error {
	return s.store.EditFile(name, data)
}

func (s *Session) RemoveFile(name string) error {
	return s.store.RemoveFile(name)
}

// CreateDirectory creates name inside the current directory.
func (s *Session) CreateDirectory(name string) error {
	return s.store.CreateDirectory(s.current, name)
}

func (s *Session) RemoveDirectory(name string) error {
	return s.store.RemoveDirectory(name)
}

// ListDirectory lists the current directory.
func (s *Session) ListDirectory() ([]string, error) {
	return s.store.ListDirectory(s.current)
}

// List lists dir.
func (s *Session) List(dir string) ([]string, error) {
	return s.store.ListDirectory(dir)
}

// Navigate makes name the current directory. On failure the current
// directory is unchanged.
func (s *Session) Navigate(name string) error {
	next, err := s.store.Navigate(s.current, name)
	if err != nil {
		return err
	}
	s.current = next
	return nil
}

// NavigateBack moves to the parent of the current directory. At the root it
// does nothing.
func (s *Session) NavigateBack() {
	s.current = s.store.NavigateBack(s.current)
}
