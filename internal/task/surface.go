package task

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/dshills/tasklist/internal/process"
)

// Surface errors.
var (
	// ErrSurfaceNotFound indicates no surface has the requested name.
	ErrSurfaceNotFound = errors.New("surface not found")

	// ErrNotRunning indicates the surface has no live process.
	ErrNotRunning = errors.New("surface has no running process")
)

// SurfaceState is the run state of an output surface.
type SurfaceState int

const (
	// SurfaceIdle means no process is attached.
	SurfaceIdle SurfaceState = iota
	// SurfaceRunning means a live process owns the surface.
	SurfaceRunning
)

// String returns the state name.
func (s SurfaceState) String() string {
	if s == SurfaceRunning {
		return "running"
	}
	return "idle"
}

// Consumer receives surface notifications. Consumers are called in
// registration order, one notification at a time per surface.
type Consumer interface {
	// OnAppend is called after chunk was appended; cursor is the new end of
	// the buffer.
	OnAppend(s *Surface, chunk []byte, cursor int)

	// OnExit is called once when the surface's process terminates.
	OnExit(s *Surface, status process.Status)
}

// ConsumerFuncs adapts plain functions to Consumer. Either field may be nil.
// Register it by pointer so it can be removed again.
type ConsumerFuncs struct {
	Append func(s *Surface, chunk []byte, cursor int)
	Exit   func(s *Surface, status process.Status)
}

// OnAppend implements Consumer.
func (f *ConsumerFuncs) OnAppend(s *Surface, chunk []byte, cursor int) {
	if f.Append != nil {
		f.Append(s, chunk, cursor)
	}
}

// OnExit implements Consumer.
func (f *ConsumerFuncs) OnExit(s *Surface, status process.Status) {
	if f.Exit != nil {
		f.Exit(s, status)
	}
}

// WriterConsumer copies every appended chunk to W. It follows the tail of a
// surface on a terminal.
type WriterConsumer struct {
	W io.Writer
}

// OnAppend implements Consumer.
func (w *WriterConsumer) OnAppend(_ *Surface, chunk []byte, _ int) {
	_, _ = w.W.Write(chunk)
}

// OnExit implements Consumer.
func (w *WriterConsumer) OnExit(*Surface, process.Status) {}

// Surface is a named output destination with at most one live process and an
// append-only buffer.
type Surface struct {
	name string

	// mu guards the fields below.
	mu        sync.Mutex
	proc      *process.Process
	run       *Run
	buf       []byte
	consumers []Consumer
	last      *process.Status
	runs      int

	// notifyMu serializes notifications so consumers see chunks in order.
	notifyMu sync.Mutex
}

func newSurface(name string) *Surface {
	return &Surface{name: name}
}

// Name returns the surface name.
func (s *Surface) Name() string {
	return s.name
}

// State reports whether a process owns the surface.
func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Surface) stateLocked() SurfaceState {
	if s.run != nil {
		return SurfaceRunning
	}
	return SurfaceIdle
}

// Output returns a copy of the buffered output.
func (s *Surface) Output() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// current returns the run that owns the surface, or nil.
func (s *Surface) current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// LastStatus returns the status of the most recent finished run.
func (s *Surface) LastStatus() (process.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return process.Status{}, false
	}
	return *s.last, true
}

// AddConsumer attaches c to the surface.
func (s *Surface) AddConsumer(c Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

// RemoveConsumer detaches c.
func (s *Surface) RemoveConsumer(c Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Surface) removeLocked(c Consumer) {
	for i, existing := range s.consumers {
		if existing == c {
			s.consumers = append(s.consumers[:i:i], s.consumers[i+1:]...)
			return
		}
	}
}

// Write appends p to the buffer and notifies consumers. It is the sink the
// surface's process writes both stdout and stderr to.
func (s *Surface) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.buf = append(s.buf, p...)
	cursor := len(s.buf)
	consumers := s.snapshotLocked()
	s.mu.Unlock()

	// Consumers may hold on to the chunk.
	chunk := make([]byte, len(p))
	copy(chunk, p)
	for _, c := range consumers {
		c.OnAppend(s, chunk, cursor)
	}
	return len(p), nil
}

func (s *Surface) snapshotLocked() []Consumer {
	out := make([]Consumer, len(s.consumers))
	copy(out, s.consumers)
	return out
}

// claim attaches run to an idle surface and clears the previous output.
func (s *Surface) claim(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil {
		return ErrAlreadyRunning
	}
	s.run = r
	s.buf = s.buf[:0]
	s.runs++
	return nil
}

// unclaim detaches a run that never started.
func (s *Surface) unclaim(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == r {
		s.run = nil
		s.runs--
	}
}

// attach records the live process of the claimed run.
func (s *Surface) attach(p *process.Process) {
	s.mu.Lock()
	s.proc = p
	s.mu.Unlock()
}

// release returns the surface to idle and notifies OnExit. Consumers in
// detach still receive this OnExit but are removed before the surface can be
// claimed again.
func (s *Surface) release(st process.Status, detach ...Consumer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.run = nil
	s.proc = nil
	s.last = &st
	consumers := s.snapshotLocked()
	for _, c := range detach {
		s.removeLocked(c)
	}
	s.mu.Unlock()

	for _, c := range consumers {
		c.OnExit(s, st)
	}
}

// Info is a point-in-time description of a surface.
type Info struct {
	Name   string
	State  SurfaceState
	Runs   int
	Cursor int
	PID    int
	Last   *process.Status
}

// Info returns the surface description.
func (s *Surface) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Name:   s.name,
		State:  s.stateLocked(),
		Runs:   s.runs,
		Cursor: len(s.buf),
		PID:    -1,
	}
	if s.proc != nil {
		info.PID = s.proc.PID()
	}
	if s.last != nil {
		st := *s.last
		info.Last = &st
	}
	return info
}

// Registry maps surface names to surfaces.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: make(map[string]*Surface)}
}

// Surface returns the named surface, creating it when absent.
func (r *Registry) Surface(name string) *Surface {
	r.mu.RLock()
	s, ok := r.surfaces[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.surfaces[name]; ok {
		return s
	}
	s = newSurface(name)
	r.surfaces[name] = s
	return s
}

// Get returns the named surface.
func (r *Registry) Get(name string) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[name]
	return s, ok
}

// List describes all surfaces sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	surfaces := make([]*Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		surfaces = append(surfaces, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, len(surfaces))
	for i, s := range surfaces {
		infos[i] = s.Info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Running returns the surfaces that currently own a process.
func (r *Registry) Running() []*Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Surface
	for _, s := range r.surfaces {
		if s.State() == SurfaceRunning {
			out = append(out, s)
		}
	}
	return out
}
