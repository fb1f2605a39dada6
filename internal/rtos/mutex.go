package rtos

import (
	"sync"
	"time"
)

// Mutex is a kernel mutex. Ownership passes directly from the releasing
// thread to the oldest waiter, so waiters are granted strictly in arrival
// order.
type Mutex struct {
	name string
	flag IPCFlag
	tick time.Duration

	mu       sync.Mutex
	held     bool        // Protected by mu
	detached bool        // Protected by mu
	waiters  []chan bool // Protected by mu
}

func (m *Mutex) Name() string  { return m.name }
func (m *Mutex) Flag() IPCFlag { return m.flag }

// Take acquires the mutex. With NoWait it fails immediately with ErrTimeout
// when the mutex is held; with WaitForever it blocks until granted. Positive
// timeouts are counted in ticks.
func (m *Mutex) Take(timeout Timeout) error {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return ErrDetached
	}
	if !m.held {
		m.held = true
		m.mu.Unlock()
		return nil
	}
	if timeout == NoWait {
		m.mu.Unlock()
		return ErrTimeout
	}

	ch := make(chan bool, 1)
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	if timeout == WaitForever {
		return grantResult(<-ch)
	}

	timer := time.NewTimer(time.Duration(timeout) * m.tick)
	defer timer.Stop()

	select {
	case granted := <-ch:
		return grantResult(granted)
	case <-timer.C:
	}

	m.mu.Lock()
	for i, w := range m.waiters {
		if w == ch {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			m.mu.Unlock()
			return ErrTimeout
		}
	}
	m.mu.Unlock()

	// Granted between the timer firing and re-locking.
	return grantResult(<-ch)
}

// Release hands the mutex to the oldest waiter, or unlocks it.
func (m *Mutex) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detached {
		return ErrDetached
	}
	if !m.held {
		return ErrNotHeld
	}
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		next <- true
		return nil
	}
	m.held = false
	return nil
}

// Waiters returns the number of blocked threads.
func (m *Mutex) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Detached reports whether the mutex has been handed back to the kernel.
func (m *Mutex) Detached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}

func (m *Mutex) detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detached {
		return
	}
	m.detached = true
	m.held = false
	for _, w := range m.waiters {
		w <- false
	}
	m.waiters = nil
}

func grantResult(granted bool) error {
	if !granted {
		return ErrDetached
	}
	return nil
}
