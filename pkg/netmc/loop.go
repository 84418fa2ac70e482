package netmc

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/dualspiral/velocity/pkg/proto"
)

// run starts the reader and drains the mailbox until the connection closed.
func (c *minecraftConn) run() {
	go c.readFrames()
	for {
		task, final := c.tasks.take()
		if task != nil {
			c.safely(task)
		}
		if final {
			return
		}
	}
}

// safely runs task and closes the connection if it panics.
func (c *minecraftConn) safely(task func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(nil, "panic on connection loop, closing connection", "panic", r)
			_ = c.shutdown(false)
		}
	}()
	task()
}

// readFrames decodes one frame, posts its dispatch and waits for it to
// finish before reading on. A handler may therefore switch state,
// compression or encryption for the next frame without racing the reader.
func (c *minecraftConn) readFrames() {
	defer func() { _ = c.shutdown(false) }()
	done := c.ctx.Done()
	for c.reading.pass(done) {
		pc, err := c.in.next()
		if err != nil {
			return
		}
		dispatched := make(chan struct{})
		if !c.tasks.post(func() {
			defer close(dispatched)
			c.dispatch(pc)
		}) {
			return
		}
		select {
		case <-dispatched:
		case <-done:
			return
		}
	}
}

func (c *minecraftConn) dispatch(pc *proto.PacketContext) {
	h := c.SessionHandler()
	if h == nil || Closed(c) {
		return
	}
	_, end := c.interceptor.InterceptPacket(c.ctx, pc)
	defer end()
	h.HandlePacket(pc)
}

// mailbox is the ordered task queue of a connection loop.
type mailbox struct {
	mu     sync.Mutex
	queue  deque.Deque[func()]
	closed bool
	final  func()
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(task func()) bool {
	m.mu.Lock()
	ok := !m.closed
	if ok {
		m.queue.PushBack(task)
	}
	m.mu.Unlock()
	if ok {
		m.wake()
	}
	return ok
}

// close discards queued tasks. final is the last task take returns.
func (m *mailbox) close(final func()) {
	m.mu.Lock()
	if !m.closed {
		m.closed, m.final = true, final
		m.queue.Clear()
	}
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take blocks for the next task. final is set once the mailbox was closed.
func (m *mailbox) take() (task func(), final bool) {
	for {
		m.mu.Lock()
		switch {
		case m.closed:
			task, m.final = m.final, nil
			m.mu.Unlock()
			return task, true
		case m.queue.Len() > 0:
			task = m.queue.PopFront()
			m.mu.Unlock()
			return task, false
		}
		m.mu.Unlock()
		<-m.notify
	}
}

// readGate holds the reader back while auto reading is off.
// The zero value is open.
type readGate struct {
	mu     sync.Mutex
	closed chan struct{} // non-nil while reading is paused
}

func (g *readGate) set(open bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case open && g.closed != nil:
		close(g.closed)
		g.closed = nil
	case !open && g.closed == nil:
		g.closed = make(chan struct{})
	}
}

// pass waits until the gate is open. It reports false if done fired first.
func (g *readGate) pass(done <-chan struct{}) bool {
	g.mu.Lock()
	wait := g.closed
	g.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-done:
			return false
		}
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
