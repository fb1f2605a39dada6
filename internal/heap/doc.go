// Package heap provides the owning allocator used by the port layer.
//
// Every resource the port layer hands out (thread control blocks, thread
// stacks, thread list nodes and mutex list nodes) is carved out of an Arena
// and returned as a *Block. A Block has exactly one release point: Arena.Free.
// Freeing a block twice is reported as ErrDoubleFree instead of corrupting
// the arena's accounting.
//
// Arenas carry a byte budget. When an allocation would exceed it, Alloc
// returns ErrOutOfMemory, which the caller surfaces to the interpreter as a
// resource-exhaustion condition.
//
// Example Usage:
//
//	gcHeap := heap.New(64 * 1024)
//	stack, err := gcHeap.Alloc(6 * 1024)
//	if err != nil {
//		return err
//	}
//	defer gcHeap.Free(stack)
package heap
