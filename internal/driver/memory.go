package driver

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// The Memory driver keeps layers in a process-wide registry so scratch
// outputs can be produced by one operation and resolved by the next without
// touching disk. Paths are plain names; a fresh unique name comes from
// TempMemoryPath.

func init() {
	Register(&memoryDriver{})
}

var (
	memMu      sync.Mutex
	memSources = map[string]*memorySource{}
)

// TempMemoryPath returns a memory path that no existing in-process source
// uses.
func TempMemoryPath() string {
	return "memory/" + uuid.NewString()
}

// ResetMemory drops every in-process memory source. Intended for tests.
func ResetMemory() {
	memMu.Lock()
	defer memMu.Unlock()
	memSources = map[string]*memorySource{}
}

type memoryDriver struct{}

func (d *memoryDriver) Name() string { return "Memory" }

func (d *memoryDriver) Open(path string) (DataSource, error) {
	memMu.Lock()
	defer memMu.Unlock()
	src, ok := memSources[path]
	if !ok {
		return nil, fmt.Errorf("memory source %q does not exist", path)
	}
	return src, nil
}

func (d *memoryDriver) Create(path string) (DataSource, error) {
	memMu.Lock()
	defer memMu.Unlock()
	src, ok := memSources[path]
	if !ok {
		src = &memorySource{name: path, layers: map[string]*memoryLayer{}}
		memSources[path] = src
	}
	return src, nil
}

type memorySource struct {
	mu     sync.Mutex
	name   string
	layers map[string]*memoryLayer
}

type memoryLayer struct {
	meta LayerMeta
	recs []*Record
}

func (s *memorySource) Name() string { return s.name }

func (s *memorySource) LayerNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memorySource) Layer(name string) (Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[name]
	if !ok {
		return nil, fmt.Errorf("memory source %q has no layer %q", s.name, name)
	}
	return l, nil
}

func (s *memorySource) CreateLayer(meta LayerMeta) (Writer, error) {
	if meta.Name == "" {
		meta.Name = uuid.NewString()
	}
	l := &memoryLayer{meta: meta}
	return &memoryWriter{src: s, layer: l}, nil
}

func (s *memorySource) Close() error { return nil }

func (l *memoryLayer) Meta() LayerMeta { return l.meta }

func (l *memoryLayer) Open() (Cursor, error) {
	return &memoryCursor{recs: l.recs}, nil
}

type memoryCursor struct {
	recs []*Record
	pos  int
}

func (c *memoryCursor) Next() (*Record, error) {
	if c.pos >= len(c.recs) {
		return nil, io.EOF
	}
	rec := c.recs[c.pos]
	c.pos++
	return rec, nil
}

func (c *memoryCursor) Close() error { return nil }

type memoryWriter struct {
	src   *memorySource
	layer *memoryLayer
}

func (w *memoryWriter) Write(rec *Record) error {
	clone := *rec
	clone.FID = len(w.layer.recs)
	clone.Values = append([]any(nil), rec.Values...)
	w.layer.recs = append(w.layer.recs, &clone)
	return nil
}

// Close publishes the layer, replacing any layer of the same name.
func (w *memoryWriter) Close() error {
	w.src.mu.Lock()
	defer w.src.mu.Unlock()
	w.src.layers[w.layer.meta.Name] = w.layer
	return nil
}
