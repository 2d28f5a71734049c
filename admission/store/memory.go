// Package store provides in-memory admission.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/chwlink/commodity-engine/admission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps requests in a slice and counts every read it serves, so
// tests can assert how many store round-trips a decision cost.
type Memory struct {
	mu       sync.Mutex
	requests []admission.Request
	nextID   int64
	reads    int

	// Err, when set, is returned by every read and write.
	Err error
}

type pairKey struct {
	CHWID       int64
	CommodityID int64
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Seed stores requests as-is, assigning IDs to those without one.
// It bypasses the daily uniqueness rule so tests can build any history.
func (m *Memory) Seed(reqs ...admission.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reqs {
		if r.ID == 0 {
			r.ID = m.nextID
		}
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
		m.requests = append(m.requests, r)
	}
}

// Reads returns the number of read queries served so far.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Requests returns a copy of everything stored.
func (m *Memory) Requests() []admission.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]admission.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *Memory) ExistsRequestForDay(_ context.Context, chwID, commodityID int64, day admission.Day) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsLocked(pairKey{chwID, commodityID}, day)
}

func (m *Memory) SumQuantityForMonth(_ context.Context, chwID, commodityID int64, monthStart admission.Day) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(pairKey{chwID, commodityID}, monthStart)
}

func (m *Memory) InsertRequest(_ context.Context, req admission.NewRequest) (admission.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(req)
}

func (m *Memory) existsLocked(k pairKey, day admission.Day) (bool, error) {
	m.reads++
	if m.Err != nil {
		return false, m.Err
	}
	for _, r := range m.requests {
		if r.CHWID == k.CHWID && r.CommodityID == k.CommodityID && r.Day().Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) sumLocked(k pairKey, monthStart admission.Day) (int, error) {
	m.reads++
	if m.Err != nil {
		return 0, m.Err
	}
	total := 0
	for _, r := range m.requests {
		if r.CHWID == k.CHWID && r.CommodityID == k.CommodityID && !r.Day().Before(monthStart) {
			total += r.Quantity
		}
	}
	return total, nil
}

func (m *Memory) insertLocked(req admission.NewRequest) (admission.Request, error) {
	if m.Err != nil {
		return admission.Request{}, m.Err
	}
	day := admission.DayOf(req.RequestDate)
	for _, r := range m.requests {
		if r.CHWID == req.CHWID && r.CommodityID == req.CommodityID && r.Day().Equal(day) {
			return admission.Request{}, admission.ErrDuplicateForDay
		}
	}

	created := admission.Request{
		ID:          m.nextID,
		CHWID:       req.CHWID,
		CommodityID: req.CommodityID,
		Quantity:    req.Quantity,
		RequestDate: req.RequestDate,
		Status:      req.Status,
	}
	m.nextID++
	m.requests = append(m.requests, created)
	return created, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn while holding the store lock.
// Writes made by fn are rolled back if it returns an error.
func (m *Memory) WithTx(_ context.Context, fn func(admission.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests []admission.Request
	nextID   int64
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		requests: append([]admission.Request{}, m.requests...),
		nextID:   m.nextID,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.requests = s.requests
	m.nextID = s.nextID
}

// txMemoryView runs against the parent with its lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) ExistsRequestForDay(_ context.Context, chwID, commodityID int64, day admission.Day) (bool, error) {
	return tv.parent.existsLocked(pairKey{chwID, commodityID}, day)
}

func (tv *txMemoryView) SumQuantityForMonth(_ context.Context, chwID, commodityID int64, monthStart admission.Day) (int, error) {
	return tv.parent.sumLocked(pairKey{chwID, commodityID}, monthStart)
}

func (tv *txMemoryView) InsertRequest(_ context.Context, req admission.NewRequest) (admission.Request, error) {
	return tv.parent.insertLocked(req)
}
