package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/coder/hnsw"
)

// vectorIndex is the in-memory HNSW mirror of the chunks table. It is
// rebuilt from SQLite on open and kept in sync on every write, so it
// never needs its own persistence. Callers must hold the owning
// store's lock.
//
// Deletion is lazy: nodes stay in the graph and are filtered out of
// results through the key mapping. Deleting graph nodes directly can
// break coder/hnsw when the last node goes away.
type vectorIndex struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int
}

func newVectorIndex(dims int) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dims:   dims,
	}
}

// add inserts or replaces one vector.
func (v *vectorIndex) add(id string, vector []float32) error {
	if len(vector) != v.dims {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), v.dims)
	}

	if oldKey, exists := v.idMap[id]; exists {
		delete(v.keyMap, oldKey)
		delete(v.idMap, id)
	}

	key := v.nextKey
	v.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id
	return nil
}

// remove drops an ID from the mappings, orphaning its graph node.
func (v *vectorIndex) remove(id string) {
	if key, exists := v.idMap[id]; exists {
		delete(v.keyMap, key)
		delete(v.idMap, id)
	}
}

// vectorHit is a raw nearest-neighbor result.
type vectorHit struct {
	id         string
	similarity float64
}

// search returns up to k live neighbors by cosine similarity, best
// first. Orphaned nodes are skipped, so it over-fetches from the graph
// to compensate.
func (v *vectorIndex) search(query []float32, k int) ([]vectorHit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), v.dims)
	}
	if v.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if !normalizeInPlace(normalized) {
		// Zero-magnitude queries have no cosine direction. Every
		// distance would be NaN, so there are no meaningful neighbors.
		return nil, nil
	}

	fetch := k + (v.graph.Len() - len(v.idMap))
	nodes := v.graph.Search(normalized, fetch)

	hits := make([]vectorHit, 0, k)
	for _, node := range nodes {
		id, live := v.keyMap[node.Key]
		if !live {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		similarity := 1 - float64(distance)
		if math.IsNaN(similarity) {
			continue
		}
		hits = append(hits, vectorHit{id: id, similarity: similarity})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (v *vectorIndex) count() int { return len(v.idMap) }

// normalizeInPlace scales v to unit length. It reports false for a
// zero-magnitude vector, which it leaves untouched.
func normalizeInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// encodeVector serializes a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 blob.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
