package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// Suitable for tests and small corpora. When a path is set the contents are loaded on
// open and written back on Close.
type MemoryIndex struct {
	dimensions int
	path       string
	order      []string
	records    map[string]Record
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		records:    make(map[string]Record),
	}, nil
}

// OpenMemoryIndex creates a memory index persisted at path, loading existing contents.
func OpenMemoryIndex(path string, dimensions int) (*MemoryIndex, error) {
	m, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	m.path = path
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert inserts or replaces records by ID.
func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	if err := checkDimensions(records, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		vec := make([]float32, m.dimensions)
		copy(vec, r.Vector)
		if _, ok := m.records[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = Record{ID: r.ID, Vector: vec, Metadata: r.Metadata}
	}
	return nil
}

// Query returns the top-k records by inner product among those matching filter.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, topK int, filter *Filter) ([]Match, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		if !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, Match{ID: id, Score: InnerProduct(query, r.Vector), Metadata: r.Metadata})
	}
	return mergeTopK(matches, topK), nil
}

// Delete removes records by ID.
func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.records[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

// IDs lists the IDs of every record matching filter, in insertion order.
func (m *MemoryIndex) IDs(ctx context.Context, filter Filter) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, id := range m.order {
		if filter.Matches(m.records[id].Metadata) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of records.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	return m.Size(), nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Close writes the index to its path, if any.
func (m *MemoryIndex) Close() error {
	if m.path == "" {
		return nil
	}
	return m.Save(m.path)
}

// Save persists the index to path. Directory is created if needed. Format: dimension (4), n (4),
// then per record: id, source, text (each length-prefixed), chunk id (4), vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(m.dimensions), uint32(len(m.order))}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, id := range m.order {
		r := m.records[id]
		for _, s := range []string{r.ID, r.Metadata.Source, r.Metadata.Text} {
			if err := writeString(w, s); err != nil {
				return fmt.Errorf("write record %s: %w", id, err)
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(r.Metadata.ChunkID)); err != nil {
			return fmt.Errorf("write chunk id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return w.Flush()
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if int(header[0]) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", header[0], m.dimensions)
	}
	order := make([]string, 0, header[1])
	records := make(map[string]Record, header[1])
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < header[1]; i++ {
		var fields [3]string
		for j := range fields {
			if fields[j], err = readString(r); err != nil {
				return fmt.Errorf("read record %d: %w", i, err)
			}
		}
		var chunkID uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			return fmt.Errorf("read chunk id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		order = append(order, fields[0])
		records[fields[0]] = Record{
			ID:       fields[0],
			Vector:   bytesToFloat32Slice(buf),
			Metadata: Metadata{Source: fields[1], Text: fields[2], ChunkID: int(chunkID)},
		}
	}
	m.mu.Lock()
	m.order, m.records = order, records
	m.mu.Unlock()
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
