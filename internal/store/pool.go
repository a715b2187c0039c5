package store

import (
	"strconv"

	"github.com/google/btree"
)

// BlockID identifies a block within the pool, in [0, total).
type BlockID int

// String returns the decimal form of the id.
func (id BlockID) String() string {
	return strconv.Itoa(int(id))
}

const btreeDegree = 16

// blockPool partitions [0, total) into a free set and an allocated set.
// An id is in exactly one of them at all times. Allocated blocks carry an
// optional payload.
type blockPool struct {
	total     int
	free      *btree.BTreeG[BlockID]
	allocated map[BlockID]string
}

func newBlockPool(total int) *blockPool {
	free := btree.NewG[BlockID](btreeDegree, func(a, b BlockID) bool { return a < b })
	for i := 0; i < total; i++ {
		free.ReplaceOrInsert(BlockID(i))
	}
	return &blockPool{
		total:     total,
		free:      free,
		allocated: make(map[BlockID]string),
	}
}

// allocate hands out the lowest free block with an empty payload.
func (p *blockPool) allocate() (BlockID, bool) {
	id, ok := p.free.DeleteMin()
	if !ok {
		return 0, false
	}
	p.allocated[id] = ""
	return id, true
}

func (p *blockPool) release(id BlockID) bool {
	if _, ok := p.allocated[id]; !ok {
		return false
	}
	delete(p.allocated, id)
	p.free.ReplaceOrInsert(id)
	return true
}

func (p *blockPool) write(id BlockID, data string) bool {
	if _, ok := p.allocated[id]; !ok {
		return false
	}
	p.allocated[id] = data
	return true
}

func (p *blockPool) read(id BlockID) (string, bool) {
	data, ok := p.allocated[id]
	return data, ok
}

func (p *blockPool) isAllocated(id BlockID) bool {
	_, ok := p.allocated[id]
	return ok
}

func (p *blockPool) freeCount() int {
	return p.free.Len()
}

func (p *blockPool) allocatedIDs() []BlockID {
	ids := make([]BlockID, 0, len(p.allocated))
	for i := 0; i < p.total; i++ {
		if _, ok := p.allocated[BlockID(i)]; ok {
			ids = append(ids, BlockID(i))
		}
	}
	return ids
}
