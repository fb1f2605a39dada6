package heap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

var (
	ErrOutOfMemory = errors.New("out of memory")
	ErrDoubleFree  = errors.New("block already freed")
	ErrForeign     = errors.New("block not owned by this arena")
)

// WordSize is the size in bytes of one scanned word.
const WordSize = unsafe.Sizeof(uintptr(0))

// Unlimited disables the arena budget.
const Unlimited = 0

// Block is an owning handle for one allocation.
type Block struct {
	arena *Arena
	words []uintptr
	size  uintptr
	freed atomic.Bool
}

// Base returns the address of the first word, or nil for an empty block.
func (b *Block) Base() unsafe.Pointer {
	if b == nil || len(b.words) == 0 {
		return nil
	}
	return unsafe.Pointer(&b.words[0])
}

// Size returns the requested size in bytes.
func (b *Block) Size() uintptr {
	if b == nil {
		return 0
	}
	return b.size
}

// Words returns the number of whole words backing the block.
func (b *Block) Words() uintptr {
	if b == nil {
		return 0
	}
	return uintptr(len(b.words))
}

// Freed reports whether the block has been released.
func (b *Block) Freed() bool {
	return b != nil && b.freed.Load()
}

// Wrap adopts memory that was not allocated by any arena, such as the
// bootstrap thread's stack. The returned block can never be freed.
func Wrap(words []uintptr) *Block {
	return &Block{words: words, size: uintptr(len(words)) * WordSize}
}

// Arena hands out blocks against a byte budget.
type Arena struct {
	mu     sync.Mutex
	limit  uintptr // Protected by mu
	inUse  uintptr // Protected by mu
	blocks int     // Protected by mu
}

// New creates an arena with the given budget in bytes. A limit of Unlimited
// never fails.
func New(limit uintptr) *Arena {
	return &Arena{limit: limit}
}

// Alloc reserves size bytes, rounded up to whole words.
func (a *Arena) Alloc(size uintptr) (*Block, error) {
	n := (size + WordSize - 1) / WordSize

	a.mu.Lock()
	if a.limit != Unlimited && a.inUse+n*WordSize > a.limit {
		inUse := a.inUse
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: requested %d bytes with %d of %d in use", ErrOutOfMemory, size, inUse, a.limit)
	}
	a.inUse += n * WordSize
	a.blocks++
	a.mu.Unlock()

	return &Block{arena: a, words: make([]uintptr, n), size: size}, nil
}

// Free releases a block. Nil blocks are ignored.
func (a *Arena) Free(b *Block) error {
	if b == nil {
		return nil
	}
	if b.arena != a {
		return ErrForeign
	}
	if !b.freed.CompareAndSwap(false, true) {
		return ErrDoubleFree
	}

	a.mu.Lock()
	a.inUse -= uintptr(len(b.words)) * WordSize
	a.blocks--
	a.mu.Unlock()

	b.words = nil
	return nil
}

// InUse returns the number of bytes currently allocated.
func (a *Arena) InUse() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Blocks returns the number of live blocks.
func (a *Arena) Blocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks
}

// SetLimit changes the budget. Existing blocks are unaffected.
func (a *Arena) SetLimit(limit uintptr) {
	a.mu.Lock()
	a.limit = limit
	a.mu.Unlock()
}
