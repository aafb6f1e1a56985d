package model

import "crypto/sha256"

// BinaryPool is the shared store of attachment payloads, indexed by the
// integer IDs entry attachments reference. Storage is by content:
// adding an identical payload twice yields the same ID.
type BinaryPool struct {
	order  []int32
	byID   map[int32][]byte
	byHash map[[32]byte]int32
	next   int32
}

// NewBinaryPool returns an empty pool.
func NewBinaryPool() *BinaryPool {
	return &BinaryPool{
		byID:   make(map[int32][]byte),
		byHash: make(map[[32]byte]int32),
	}
}

// Add stores data (copied) and returns its ID, reusing the existing ID
// if an identical payload is already pooled.
func (p *BinaryPool) Add(data []byte) int32 {
	h := sha256.Sum256(data)
	if id, ok := p.byHash[h]; ok {
		return id
	}
	id := p.next
	p.next++
	p.byID[id] = append([]byte(nil), data...)
	p.byHash[h] = id
	p.order = append(p.order, id)
	return id
}

// Put stores data under an explicit ID, as loading an existing file
// requires (the file dictates the IDs). Later Adds dedupe against it.
func (p *BinaryPool) Put(id int32, data []byte) {
	h := sha256.Sum256(data)
	if _, ok := p.byID[id]; !ok {
		p.order = append(p.order, id)
	}
	p.byID[id] = append([]byte(nil), data...)
	if _, ok := p.byHash[h]; !ok {
		p.byHash[h] = id
	}
	if id >= p.next {
		p.next = id + 1
	}
}

// Get returns the payload stored under id.
func (p *BinaryPool) Get(id int32) ([]byte, bool) {
	data, ok := p.byID[id]
	return data, ok
}

// IDs returns the pool's IDs in insertion order.
func (p *BinaryPool) IDs() []int32 {
	return append([]int32(nil), p.order...)
}

// Len returns the number of pooled payloads.
func (p *BinaryPool) Len() int { return len(p.order) }
