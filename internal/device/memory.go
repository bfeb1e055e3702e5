package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/resource"
)

var (
	// ErrUnknownObject is returned when destroying an object Memory did not
	// create or already destroyed.
	ErrUnknownObject = errors.New("unknown device object")
	// ErrCreateFailed is returned by CreateImage and CreateBuffer after
	// FailCreate(true).
	ErrCreateFailed = errors.New("device object creation failed")
)

// Object is a device object created by Memory.
type Object struct {
	ID     int
	Image  bool
	Name   string
	Width  uint32
	Height uint32
	Size   uint64
}

func (o *Object) String() string {
	if o.Image {
		return fmt.Sprintf("image%d(%s %dx%d)", o.ID, o.Name, o.Width, o.Height)
	}
	return fmt.Sprintf("buffer%d(%s %dB)", o.ID, o.Name, o.Size)
}

// Call is one recorded command.
type Call struct {
	Op        string
	Queue     gfx.QueueClass
	Semaphore int
	Stage     gfx.Stage
	Barriers  []plan.Barrier
}

// Memory is an in-memory Factory and Recorder. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	next      int
	live      map[*Object]bool
	created   int
	destroyed int
	calls     []Call
	fail      bool
}

// NewMemory creates an empty recording device.
func NewMemory() *Memory {
	return &Memory{live: make(map[*Object]bool)}
}

// FailCreate makes every following object creation fail until it is called
// with false.
func (m *Memory) FailCreate(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *Memory) add(o *Object) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, o.Name)
	}
	o.ID = m.next
	m.next++
	m.created++
	m.live[o] = true
	return o, nil
}

// CreateImage implements Factory.
func (m *Memory) CreateImage(_ context.Context, desc resource.ImageDesc) (any, error) {
	return m.add(&Object{Image: true, Name: desc.Name, Width: desc.Width, Height: desc.Height})
}

// CreateBuffer implements Factory.
func (m *Memory) CreateBuffer(_ context.Context, desc resource.BufferDesc) (any, error) {
	return m.add(&Object{Name: desc.Name, Size: desc.Size})
}

// Destroy implements Factory.
func (m *Memory) Destroy(_ context.Context, object any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := object.(*Object)
	if !ok || !m.live[o] {
		return fmt.Errorf("%w: %v", ErrUnknownObject, object)
	}
	delete(m.live, o)
	m.destroyed++
	return nil
}

// PipelineBarrier implements Recorder.
func (m *Memory) PipelineBarrier(_ context.Context, queue gfx.QueueClass, barriers []plan.Barrier) error {
	m.record(Call{Op: "barrier", Queue: queue, Semaphore: plan.NoSemaphore, Barriers: append([]plan.Barrier(nil), barriers...)})
	return nil
}

// WaitSemaphore implements Recorder.
func (m *Memory) WaitSemaphore(_ context.Context, queue gfx.QueueClass, semaphore int, stage gfx.Stage) error {
	m.record(Call{Op: "wait", Queue: queue, Semaphore: semaphore, Stage: stage})
	return nil
}

// SignalSemaphore implements Recorder.
func (m *Memory) SignalSemaphore(_ context.Context, queue gfx.QueueClass, semaphore int) error {
	m.record(Call{Op: "signal", Queue: queue, Semaphore: semaphore})
	return nil
}

// Mark records a free-form call, such as a pass boundary.
func (m *Memory) Mark(op string, queue gfx.QueueClass) {
	m.record(Call{Op: op, Queue: queue, Semaphore: plan.NoSemaphore})
}

func (m *Memory) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of every recorded call.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Stats returns how many objects were created and destroyed, and how many
// are still alive.
func (m *Memory) Stats() (created, destroyed, live int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, m.destroyed, len(m.live)
}
