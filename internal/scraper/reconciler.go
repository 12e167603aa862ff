package scraper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"hash/fnv"
	"sync"
	"time"

	"creach-t/sparepartsworker/logger"
	"creach-t/sparepartsworker/pkg/errors"
	"creach-t/sparepartsworker/services/publisher"
	"creach-t/sparepartsworker/services/storage"
)

// Outcome reports what one reconciliation did
type Outcome struct {
	CreatedPart         bool
	CreatedAvailability bool
	Changed             bool
}

// Reconciler merges normalized records into persistent Part, Supplier and
// Availability state. It is the sole writer of all three entities; writes
// for the same (part, supplier) pair are serialized through striped locks,
// different pairs proceed independently.
type Reconciler struct {
	store storage.Storage
	pub   publisher.Publisher
	locks [64]sync.Mutex
	now   func() time.Time
	log   *logger.Logger
}

// NewReconciler creates a reconciler over the given storage. pub may be nil
// to disable change events.
func NewReconciler(store storage.Storage, pub publisher.Publisher) *Reconciler {
	return &Reconciler{
		store: store,
		pub:   pub,
		now:   time.Now,
		log:   logger.ForReconciler(),
	}
}

// ResolveSupplier returns the supplier row for a source, creating it on
// first observation. Called once per source per run, not per record.
func (r *Reconciler) ResolveSupplier(ctx context.Context, siteID, website string) (*storage.Supplier, error) {
	sup, err := r.store.FindOrCreateSupplier(ctx, siteID, website)
	if err != nil {
		return nil, errors.NewStorage(siteID, "failed to resolve supplier", err)
	}
	return sup, nil
}

// pairLock returns the stripe serializing writes for one (reference,
// supplier) pair
func (r *Reconciler) pairLock(reference string, supplierID int64) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(reference))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(supplierID))
	h.Write(buf[:])
	return &r.locks[h.Sum32()%uint32(len(r.locks))]
}

// Reconcile merges one normalized record for one supplier into storage.
// Part descriptive fields are only overwritten by non-empty incoming values;
// the availability observation is overwritten wholesale and its last_checked
// advanced, since reaching this point means the fetch succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, rec NormalizedRecord, supplier *storage.Supplier) (Outcome, error) {
	mu := r.pairLock(rec.Reference, supplier.ID)
	mu.Lock()
	defer mu.Unlock()

	var out Outcome

	part, err := r.store.FindPartByReference(ctx, rec.Reference)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		part = &storage.Part{
			Reference:   rec.Reference,
			Name:        rec.Name,
			Description: rec.Description,
			Category:    rec.Category,
			ImageURL:    rec.ImageURL,
		}
		out.CreatedPart = true
	case err != nil:
		return out, errors.NewStorage(supplier.Name, "part lookup failed", err)
	default:
		mergeField(&part.Name, rec.Name)
		mergeField(&part.Description, rec.Description)
		mergeField(&part.Category, rec.Category)
		mergeField(&part.ImageURL, rec.ImageURL)
	}

	part, err = r.store.UpsertPart(ctx, part)
	if err != nil {
		return out, errors.NewStorage(supplier.Name, "part upsert failed", err)
	}

	prev, err := r.store.FindAvailability(ctx, part.ID, supplier.ID)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return out, errors.NewStorage(supplier.Name, "availability lookup failed", err)
	}
	out.CreatedAvailability = prev == nil

	avail := &storage.Availability{
		PartID:      part.ID,
		SupplierID:  supplier.ID,
		Price:       rec.Price,
		InStock:     rec.InStock,
		URL:         rec.URL,
		LastChecked: r.now().UTC(),
	}
	stored, err := r.store.UpsertAvailability(ctx, avail)
	if err != nil {
		return out, errors.NewStorage(supplier.Name, "availability upsert failed", err)
	}

	out.Changed = out.CreatedAvailability ||
		!floatEqual(prev.Price, stored.Price) ||
		!boolEqual(prev.InStock, stored.InStock) ||
		prev.URL != stored.URL

	if out.Changed {
		r.publishChange(rec, supplier, stored)
	}

	return out, nil
}

// publishChange emits an availability change event. Publish failures are
// logged, never surfaced: the store is already consistent.
func (r *Reconciler) publishChange(rec NormalizedRecord, supplier *storage.Supplier, stored *storage.Availability) {
	if r.pub == nil {
		return
	}
	event := AvailabilityEvent{
		Reference: rec.Reference,
		Supplier:  supplier.Name,
		Price:     stored.Price,
		InStock:   stored.InStock,
		URL:       stored.URL,
		CheckedAt: stored.LastChecked.Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.log.Error().Err(err).Str("reference", rec.Reference).Msg("Failed to marshal change event")
		return
	}
	if err := r.pub.Publish(supplier.Name, data); err != nil {
		r.log.Warn().Err(err).Str("reference", rec.Reference).Msg("Failed to publish change event")
	}
}

// mergeField overwrites dst only when the incoming value is known
func mergeField(dst *string, incoming string) {
	if incoming != "" {
		*dst = incoming
	}
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func boolEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
