package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is a mutex-guarded in-memory Storage implementation. It
// enforces the same uniqueness rules as the Postgres implementation and is
// used by tests and offline runs.
type MemoryStorage struct {
	mu           sync.Mutex
	parts        map[string]*Part  // keyed by reference
	suppliers    map[string]*Supplier
	availability map[[2]int64]*Availability // keyed by (part_id, supplier_id)
	nextID       int64
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		parts:        make(map[string]*Part),
		suppliers:    make(map[string]*Supplier),
		availability: make(map[[2]int64]*Availability),
	}
}

func (s *MemoryStorage) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

// FindPartByReference returns the part with the given reference, or ErrNotFound
func (s *MemoryStorage) FindPartByReference(_ context.Context, reference string) (*Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[reference]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

// UpsertPart inserts or updates the part row keyed by reference
func (s *MemoryStorage) UpsertPart(_ context.Context, part *Part) (*Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.parts[part.Reference]; ok {
		existing.Name = part.Name
		existing.Description = part.Description
		existing.Category = part.Category
		existing.ImageURL = part.ImageURL
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	stored := *part
	stored.ID = s.nextSeq()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.parts[part.Reference] = &stored
	cp := stored
	return &cp, nil
}

// FindOrCreateSupplier returns the supplier row, creating it on first use
func (s *MemoryStorage) FindOrCreateSupplier(_ context.Context, name, website string) (*Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp, ok := s.suppliers[name]; ok {
		cp := *sp
		return &cp, nil
	}
	stored := Supplier{
		ID:        s.nextSeq(),
		Name:      name,
		Website:   website,
		CreatedAt: time.Now().UTC(),
	}
	s.suppliers[name] = &stored
	cp := stored
	return &cp, nil
}

// FindAvailability returns the availability row for the pair, or ErrNotFound
func (s *MemoryStorage) FindAvailability(_ context.Context, partID, supplierID int64) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.availability[[2]int64{partID, supplierID}]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrNotFound
}

// UpsertAvailability inserts or updates the row for the (part, supplier) pair
func (s *MemoryStorage) UpsertAvailability(_ context.Context, avail *Availability) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{avail.PartID, avail.SupplierID}
	if existing, ok := s.availability[key]; ok {
		existing.Price = avail.Price
		existing.InStock = avail.InStock
		existing.URL = avail.URL
		existing.LastChecked = avail.LastChecked
		cp := *existing
		return &cp, nil
	}
	stored := *avail
	stored.ID = s.nextSeq()
	s.availability[key] = &stored
	cp := stored
	return &cp, nil
}

// AvailabilityCount returns the number of availability rows, for tests
func (s *MemoryStorage) AvailabilityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.availability)
}

// PartCount returns the number of part rows, for tests
func (s *MemoryStorage) PartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parts)
}

// Close is a no-op for the in-memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
