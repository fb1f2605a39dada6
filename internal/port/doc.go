// Package port lets a garbage-collected interpreter run its threads on a
// preemptive kernel.
//
// A Port is the process-wide service object. It is created once by Init on
// the bootstrap thread and torn down once by Deinit. In between it tracks:
//
//   - every interpreter thread, with its kernel handle, start argument and
//     stack, in a list guarded by a single registry lock;
//   - every interpreter mutex, so shutdown can hand them all back to the
//     kernel.
//
// Thread lifecycle:
//
//	Create   -> node allocated, linked, kernel thread started (not ready)
//	Start    -> called by the new thread first; node becomes ready
//	Finish   -> called by the thread last; node unlinked and freed
//
// CollectRoots walks the list for the collector. Kernel handles and start
// arguments are reported for every thread; stacks only for ready threads
// other than the caller, whose own stack the collector walks natively.
// Other threads keep running during the walk, so their stacks are read as
// a racy snapshot. A conservative collector tolerates this: a word caught
// mid-update is either ignored or retained as a stale pointer.
//
// Thread identity comes from the context passed to each call; threads
// started through Create receive such a context as the first argument of
// their entry function.
package port
