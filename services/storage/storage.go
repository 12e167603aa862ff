package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no row matches
var ErrNotFound = errors.New("storage: not found")

// Part is a canonical spare part, identified by its supplier-agnostic
// catalog reference
type Part struct {
	ID          int64
	Reference   string
	Name        string
	Description string
	Category    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Supplier is a scrapeable source site
type Supplier struct {
	ID        int64
	Name      string
	Website   string
	CreatedAt time.Time
}

// Availability is one (part, supplier) observation. Price and InStock are
// nil when the supplier page did not expose a parseable value.
type Availability struct {
	ID          int64
	PartID      int64
	SupplierID  int64
	Price       *float64
	InStock     *bool
	URL         string
	LastChecked time.Time
}

// Storage is the persistence collaborator of the reconciler. Implementations
// must enforce uniqueness of Part.Reference and of (PartID, SupplierID) on
// Availability.
type Storage interface {
	// FindPartByReference returns the part with the given reference,
	// or ErrNotFound
	FindPartByReference(ctx context.Context, reference string) (*Part, error)

	// UpsertPart inserts the part or updates the existing row with the
	// same reference, returning the stored row
	UpsertPart(ctx context.Context, part *Part) (*Part, error)

	// FindOrCreateSupplier returns the supplier with the given name,
	// creating it on first use
	FindOrCreateSupplier(ctx context.Context, name, website string) (*Supplier, error)

	// FindAvailability returns the availability row for the pair,
	// or ErrNotFound
	FindAvailability(ctx context.Context, partID, supplierID int64) (*Availability, error)

	// UpsertAvailability inserts the availability or updates the existing
	// row for the same (part, supplier) pair, returning the stored row
	UpsertAvailability(ctx context.Context, avail *Availability) (*Availability, error)

	// Close releases the underlying connections
	Close() error
}
