package store

import (
	"errors"
	"math/rand"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, blocks int) *BlockStore {
	t.Helper()
	s, err := New(blocks)
	require.NoError(t, err)
	return s
}

// assertPartition checks that free and allocated sets split [0, total)
// with no overlap and no gaps.
func assertPartition(t *testing.T, s *BlockStore) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[BlockID]int)
	s.pool.free.Ascend(func(id BlockID) bool {
		seen[id]++
		return true
	})
	for id := range s.pool.allocated {
		seen[id]++
	}
	require.Len(t, seen, s.pool.total, "every block must be free or allocated")
	for i := 0; i < s.pool.total; i++ {
		assert.Equal(t, 1, seen[BlockID(i)], "block %d must be in exactly one set", i)
	}
}

func TestNew(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		s := newTestStore(t, 8)
		assert.Equal(t, 8, s.TotalBlocks())
		assert.Equal(t, Usage{Total: 8, Free: 8, Allocated: 0}, s.Usage())
		assert.Empty(t, s.AllocatedBlocks())

		entries, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assertPartition(t, s)
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			_, err := New(n)
			assert.ErrorIs(t, err, ErrInvalidBlockCount)
			assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))
		}
	})
}

func TestAllocateBlock(t *testing.T) {
	const total = 5
	s := newTestStore(t, total)

	seen := make(map[BlockID]bool)
	for i := 0; i < total; i++ {
		id, err := s.AllocateBlock()
		require.NoError(t, err)
		assert.False(t, seen[id], "block %d handed out twice", id)
		assert.True(t, id >= 0 && int(id) < total)
		seen[id] = true
	}

	_, err := s.AllocateBlock()
	require.ErrorIs(t, err, ErrOutOfSpace)
	assert.True(t, platformerrors.IsRetryable(err))
	assert.Equal(t, Usage{Total: total, Free: 0, Allocated: total}, s.Usage())
	assertPartition(t, s)
}

func TestFreeBlock(t *testing.T) {
	s := newTestStore(t, 3)

	t.Run("not allocated", func(t *testing.T) {
		err := s.FreeBlock(1)
		require.ErrorIs(t, err, ErrNotAllocated)

		var storeErr *Error
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, OpFreeBlock, storeErr.Op)
		assert.Equal(t, "1", storeErr.Name)
	})

	t.Run("out of range", func(t *testing.T) {
		assert.ErrorIs(t, s.FreeBlock(99), ErrNotAllocated)
		assert.ErrorIs(t, s.FreeBlock(-1), ErrNotAllocated)
	})

	t.Run("frees and drops payload", func(t *testing.T) {
		id, err := s.AllocateBlock()
		require.NoError(t, err)
		require.NoError(t, s.WriteBlock(id, "payload"))
		require.NoError(t, s.FreeBlock(id))
		assert.False(t, s.IsAllocated(id))

		_, err = s.ReadBlock(id)
		assert.ErrorIs(t, err, ErrNotAllocated)

		again, err := s.AllocateBlock()
		require.NoError(t, err)
		assert.Equal(t, id, again)
		data, err := s.ReadBlock(again)
		require.NoError(t, err)
		assert.Empty(t, data)
		assertPartition(t, s)
	})

	t.Run("double free", func(t *testing.T) {
		id, err := s.AllocateBlock()
		require.NoError(t, err)
		require.NoError(t, s.FreeBlock(id))
		assert.ErrorIs(t, s.FreeBlock(id), ErrNotAllocated)
		assertPartition(t, s)
	})
}

func TestReadWriteBlock(t *testing.T) {
	s := newTestStore(t, 2)
	id, err := s.AllocateBlock()
	require.NoError(t, err)

	data, err := s.ReadBlock(id)
	require.NoError(t, err)
	assert.Empty(t, data, "never-written block reads empty")

	require.NoError(t, s.WriteBlock(id, "first"))
	require.NoError(t, s.WriteBlock(id, "second"))
	data, err = s.ReadBlock(id)
	require.NoError(t, err)
	assert.Equal(t, "second", data, "write overwrites, never appends")

	assert.ErrorIs(t, s.WriteBlock(id+1, "x"), ErrNotAllocated)
	_, err = s.ReadBlock(id + 1)
	assert.ErrorIs(t, err, ErrNotAllocated)
}

func TestPartitionUnderRandomOperations(t *testing.T) {
	const total = 32
	s := newTestStore(t, total)
	rng := rand.New(rand.NewSource(42))

	var live []BlockID
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			id, err := s.AllocateBlock()
			if len(live) == total {
				require.ErrorIs(t, err, ErrOutOfSpace)
			} else {
				require.NoError(t, err)
				live = append(live, id)
			}
		} else {
			id := BlockID(rng.Intn(total))
			err := s.FreeBlock(id)
			idx := -1
			for j, l := range live {
				if l == id {
					idx = j
					break
				}
			}
			if idx < 0 {
				require.ErrorIs(t, err, ErrNotAllocated)
			} else {
				require.NoError(t, err)
				live = append(live[:idx], live[idx+1:]...)
			}
		}
		assert.Equal(t, len(live), s.Usage().Allocated)
	}
	assertPartition(t, s)
}

func TestCreateFile(t *testing.T) {
	t.Run("with content", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateFile(RootDirectory, "a.txt", "hello"))

		content, err := s.ViewFile("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", content)

		entries, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, entries)
		assert.Equal(t, 1, s.Usage().Allocated)
	})

	t.Run("empty content", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateFile(RootDirectory, "empty", ""))
		content, err := s.ViewFile("empty")
		require.NoError(t, err)
		assert.Empty(t, content)
	})

	t.Run("duplicate name anywhere leaks no block", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
		require.NoError(t, s.CreateFile("docs", "a.txt", "x"))
		before := s.Usage()

		err := s.CreateFile(RootDirectory, "a.txt", "y")
		require.ErrorIs(t, err, ErrFileAlreadyExists)
		assert.Equal(t, platformerrors.CodeAlreadyExists, platformerrors.GetCode(err))
		assert.Equal(t, before, s.Usage())

		entries, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.NotContains(t, entries, "a.txt")
		assertPartition(t, s)
	})

	t.Run("unknown directory", func(t *testing.T) {
		s := newTestStore(t, 4)
		err := s.CreateFile("missing", "a.txt", "x")
		require.ErrorIs(t, err, ErrDirectoryNotFound)
		assert.Equal(t, 0, s.Usage().Allocated)

		_, err = s.ViewFile("a.txt")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("out of space binds nothing", func(t *testing.T) {
		s := newTestStore(t, 1)
		require.NoError(t, s.CreateFile(RootDirectory, "one", ""))

		err := s.CreateFile(RootDirectory, "two", "x")
		require.ErrorIs(t, err, ErrOutOfSpace)
		_, err = s.ViewFile("two")
		assert.ErrorIs(t, err, ErrFileNotFound)

		entries, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.Equal(t, []string{"one"}, entries)
	})
}

func TestEditFile(t *testing.T) {
	s := newTestStore(t, 2)
	require.NoError(t, s.CreateFile(RootDirectory, "a.txt", "hello"))
	require.NoError(t, s.EditFile("a.txt", "bye"))

	content, err := s.ViewFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "bye", content)

	assert.ErrorIs(t, s.EditFile("nope", "x"), ErrFileNotFound)
}

func TestRemoveFile(t *testing.T) {
	s := newTestStore(t, 2)
	require.NoError(t, s.CreateFile(RootDirectory, "a.txt", "hello"))
	stat, err := s.Stat("a.txt")
	require.NoError(t, err)

	require.NoError(t, s.RemoveFile("a.txt"))
	assert.False(t, s.IsAllocated(stat.Block))
	assert.Equal(t, 0, s.Usage().Allocated)

	_, err = s.ViewFile("a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.RemoveFile("a.txt"), ErrFileNotFound)

	entries, err := s.ListDirectory(RootDirectory)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assertPartition(t, s)
}

func TestDirectories(t *testing.T) {
	t.Run("create and list", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
		require.NoError(t, s.CreateFile("docs", "notes.txt", ""))

		entries, err := s.ListDirectory("docs")
		require.NoError(t, err)
		assert.Contains(t, entries, "notes.txt")

		root, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"docs"}, root)
	})

	t.Run("already exists", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
		assert.ErrorIs(t, s.CreateDirectory(RootDirectory, "docs"), ErrDirectoryAlreadyExists)
		assert.ErrorIs(t, s.CreateDirectory(RootDirectory, RootDirectory), ErrDirectoryAlreadyExists)
	})

	t.Run("missing parent", func(t *testing.T) {
		s := newTestStore(t, 4)
		assert.ErrorIs(t, s.CreateDirectory("ghost", "docs"), ErrDirectoryNotFound)
		_, err := s.ListDirectory("docs")
		assert.ErrorIs(t, err, ErrDirectoryNotFound)
	})

	t.Run("remove non-empty then empty", func(t *testing.T) {
		s := newTestStore(t, 4)
		require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
		require.NoError(t, s.CreateFile("docs", "notes.txt", "n"))

		err := s.RemoveDirectory("docs")
		require.ErrorIs(t, err, ErrDirectoryNotEmpty)
		assert.Equal(t, platformerrors.CodeConflict, platformerrors.GetCode(err))

		require.NoError(t, s.RemoveFile("notes.txt"))
		require.NoError(t, s.RemoveDirectory("docs"))

		root, err := s.ListDirectory(RootDirectory)
		require.NoError(t, err)
		assert.NotContains(t, root, "docs")
		_, err = s.ListDirectory("docs")
		assert.ErrorIs(t, err, ErrDirectoryNotFound)
	})

	t.Run("remove root", func(t *testing.T) {
		s := newTestStore(t, 4)
		err := s.RemoveDirectory(RootDirectory)
		require.ErrorIs(t, err, ErrCannotRemoveRoot)
		assert.Equal(t, platformerrors.CodeForbidden, platformerrors.GetCode(err))

		require.NoError(t, s.CreateFile(RootDirectory, "a", ""))
		assert.ErrorIs(t, s.RemoveDirectory(RootDirectory), ErrCannotRemoveRoot)
	})

	t.Run("remove unknown", func(t *testing.T) {
		s := newTestStore(t, 4)
		assert.ErrorIs(t, s.RemoveDirectory("ghost"), ErrDirectoryNotFound)
	})
}

func TestRemovalUsesOwningDirectory(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
	require.NoError(t, s.CreateDirectory("docs", "drafts"))
	require.NoError(t, s.CreateFile("docs", "notes.txt", ""))
	require.NoError(t, s.CreateFile(RootDirectory, "top.txt", ""))

	// No current directory is involved: each name leaves its own owner.
	require.NoError(t, s.RemoveFile("notes.txt"))
	require.NoError(t, s.RemoveDirectory("drafts"))

	docs, err := s.ListDirectory("docs")
	require.NoError(t, err)
	assert.Empty(t, docs)

	root, err := s.ListDirectory(RootDirectory)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs", "top.txt"}, root)
}

func TestNavigate(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))

	tests := []struct {
		name    string
		from    string
		to      string
		want    string
		wantErr error
	}{
		{name: "root to child", from: "/", to: "docs", want: "docs"},
		{name: "root to root", from: "/", to: "/", want: "/"},
		{name: "child to itself", from: "docs", to: "docs", want: "docs"},
		{name: "child to root", from: "docs", to: "/", want: "docs", wantErr: ErrCannotReturnToRoot},
		{name: "unknown", from: "/", to: "ghost", want: "/", wantErr: ErrDirectoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Navigate(tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStat(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
	require.NoError(t, s.CreateFile("docs", "notes.txt", "12345"))

	dir, err := s.Stat("docs")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, dir.Kind)
	assert.Equal(t, RootDirectory, dir.Parent)
	assert.Equal(t, 1, dir.Size)

	file, err := s.Stat("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, KindFile, file.Kind)
	assert.Equal(t, "docs", file.Parent)
	assert.Equal(t, 5, file.Size)
	assert.True(t, s.IsAllocated(file.Block))
	assert.Equal(t, []BlockID{file.Block}, s.AllocatedBlocks())

	_, err = s.Stat("ghost")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestChild(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
	require.NoError(t, s.CreateDirectory(RootDirectory, "x"))
	require.NoError(t, s.CreateFile("docs", "x", "secret"))

	// Stat prefers the directory, Child resolves against the owner.
	global, err := s.Stat("x")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, global.Kind)

	file, err := s.Child("docs", "x")
	require.NoError(t, err)
	assert.Equal(t, KindFile, file.Kind)
	assert.Equal(t, "docs", file.Parent)
	assert.Equal(t, 6, file.Size)

	dir, err := s.Child(RootDirectory, "x")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, dir.Kind)

	_, err = s.Child("docs", "docs")
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = s.Child(RootDirectory, RootDirectory)
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = s.ChildOfKind("docs", "x", KindDirectory)
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
	_, err = s.ChildOfKind(RootDirectory, "x", KindFile)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestSameNameSharesEntry(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "x"))
	require.NoError(t, s.CreateFile(RootDirectory, "x", "data"))

	names, err := s.ListDirectory(RootDirectory)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)

	// One entry backs both names, so removing either drops it.
	require.NoError(t, s.RemoveFile("x"))
	names, err = s.ListDirectory(RootDirectory)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = s.Child(RootDirectory, "x")
	require.NoError(t, err, "the directory itself survives")
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t, 4)
	require.NoError(t, s.CreateDirectory(RootDirectory, "docs"))
	require.NoError(t, s.CreateFile("docs", "notes.txt", "abc"))

	snap := s.Snapshot()
	assert.Equal(t, []string{"docs"}, snap.Directories[RootDirectory])
	assert.Equal(t, []string{"notes.txt"}, snap.Directories["docs"])
	require.Contains(t, snap.Files, "notes.txt")
	assert.Equal(t, "docs", snap.Files["notes.txt"].Directory)
	assert.Equal(t, 3, snap.Files["notes.txt"].Size)
	assert.Equal(t, Usage{Total: 4, Free: 3, Allocated: 1}, snap.Usage)
}

func TestErrorPlatformFields(t *testing.T) {
	s := newTestStore(t, 1)
	_, err := s.ViewFile("ghost")
	require.Error(t, err)

	var platformErr platformerrors.PlatformError
	require.True(t, errors.As(err, &platformErr))
	assert.Equal(t, platformerrors.CodeNotFound, platformErr.Code())
	assert.Equal(t, platformerrors.ClassificationPermanent, platformErr.Classification())
	assert.Equal(t, ErrFileNotFound.Error(), platformErr.Message())
	assert.Equal(t, map[string]interface{}{"op": OpViewFile, "name": "ghost"}, platformErr.Context())
	assert.Equal(t, `view_file "ghost": file does not exist`, err.Error())
}
