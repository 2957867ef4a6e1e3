package segment

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
)

// Buffer is the in-memory side of a Builder. Ascend must visit keys in the
// order of the schema's key codec.
type Buffer[K, V any] interface {
	Ascend(fn func(K, V) error) error
	SizeBytes() int64
	IsEmpty() bool
	Reset()
}

// Builder accumulates one logical index in a Buffer and spills it to
// temporary segments when the buffer grows past its threshold. Finish
// produces the final segment, merging the spills if there were any.
type Builder[K, V any] struct {
	schema    Schema[K, V]
	buf       Buffer[K, V]
	name      string
	tempDir   string
	threshold int64
	temps     []string
	logger    *slog.Logger
}

// NewBuilder creates a builder for the index called name. A threshold of
// zero disables automatic flushing.
func NewBuilder[K, V any](schema Schema[K, V], buf Buffer[K, V], name, tempDir string, threshold int64) *Builder[K, V] {
	return &Builder[K, V]{
		schema:    schema,
		buf:       buf,
		name:      name,
		tempDir:   tempDir,
		threshold: threshold,
		logger:    slog.Default().With("component", "segment-builder", "index", name),
	}
}

// Flushes is the number of temporary segments written so far.
func (b *Builder[K, V]) Flushes() int { return len(b.temps) }

// MaybeFlush flushes when the buffer has reached the threshold.
func (b *Builder[K, V]) MaybeFlush() (bool, error) {
	if b.threshold <= 0 || b.buf.SizeBytes() < b.threshold {
		return false, nil
	}
	if err := b.Flush(); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes the buffer to a new temporary segment and clears it.
func (b *Builder[K, V]) Flush() error {
	if b.buf.IsEmpty() {
		return nil
	}
	base := filepath.Join(b.tempDir, fmt.Sprintf("%s-%04d", b.name, len(b.temps)))
	size := b.buf.SizeBytes()
	n, err := b.write(base)
	if err != nil {
		return fmt.Errorf("flushing %s: %w", b.name, err)
	}
	b.temps = append(b.temps, base)
	b.buf.Reset()
	b.logger.Info("buffer flushed",
		"segment", base,
		"entries", n,
		"buffered_bytes", size,
	)
	return nil
}

func (b *Builder[K, V]) write(base string) (int, error) {
	w, err := Create(b.schema, base)
	if err != nil {
		return 0, err
	}
	err = b.buf.Ascend(func(key K, value V) error {
		return w.Append(key, value)
	})
	if err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

// Finish writes the final segment at dest. With no prior flush the buffer
// is written directly; otherwise the remainder is flushed and every
// temporary segment merged. Temporaries are removed either way.
func (b *Builder[K, V]) Finish(dest string) (int, error) {
	if len(b.temps) == 0 {
		n, err := b.write(dest)
		if err != nil {
			return 0, fmt.Errorf("writing %s: %w", b.name, err)
		}
		b.buf.Reset()
		b.logger.Info("index written", "entries", n, "merged", false)
		return n, nil
	}
	if err := b.Flush(); err != nil {
		b.Abort()
		return 0, err
	}
	n, err := Merge(b.schema, b.temps, dest)
	if err != nil {
		b.Abort()
		return 0, fmt.Errorf("merging %s: %w", b.name, err)
	}
	b.logger.Info("index written", "entries", n, "merged", true, "segments", len(b.temps))
	b.removeTemps()
	return n, nil
}

// Abort drops the buffer and every temporary segment.
func (b *Builder[K, V]) Abort() {
	b.buf.Reset()
	b.removeTemps()
}

func (b *Builder[K, V]) removeTemps() {
	for _, base := range b.temps {
		if err := Remove(base); err != nil {
			b.logger.Warn("failed to remove temporary segment", "segment", base, "error", err)
		}
	}
	b.temps = nil
}

// MapBuffer is a Buffer over a plain map, for indexes whose values are
// small and written once per key.
type MapBuffer[K comparable, V any] struct {
	schema Schema[K, V]
	sizeOf func(K, V) int64
	values map[K]V
	size   int64
}

// NewMapBuffer creates a map buffer. sizeOf estimates the memory held by
// one entry.
func NewMapBuffer[K comparable, V any](schema Schema[K, V], sizeOf func(K, V) int64) *MapBuffer[K, V] {
	return &MapBuffer[K, V]{
		schema: schema,
		sizeOf: sizeOf,
		values: make(map[K]V),
	}
}

// Put stores value under key, folding it into an existing value with the
// schema's MergeValues.
func (m *MapBuffer[K, V]) Put(key K, value V) {
	if old, ok := m.values[key]; ok {
		m.size -= m.sizeOf(key, old)
		value = m.schema.Values.MergeValues(old, value)
	}
	m.values[key] = value
	m.size += m.sizeOf(key, value)
}

func (m *MapBuffer[K, V]) Len() int { return len(m.values) }

func (m *MapBuffer[K, V]) Ascend(fn func(K, V) error) error {
	keys := make([]K, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, m.schema.Keys.Compare)
	for _, k := range keys {
		if err := fn(k, m.values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MapBuffer[K, V]) SizeBytes() int64 { return m.size }

func (m *MapBuffer[K, V]) IsEmpty() bool { return len(m.values) == 0 }

func (m *MapBuffer[K, V]) Reset() {
	m.values = make(map[K]V)
	m.size = 0
}
