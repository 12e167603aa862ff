package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS parts (
	id          BIGSERIAL PRIMARY KEY,
	reference   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS suppliers (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	website    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS availability (
	id           BIGSERIAL PRIMARY KEY,
	part_id      BIGINT NOT NULL REFERENCES parts(id),
	supplier_id  BIGINT NOT NULL REFERENCES suppliers(id),
	price        DOUBLE PRECISION,
	in_stock     BOOLEAN,
	url          TEXT NOT NULL DEFAULT '',
	last_checked TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (part_id, supplier_id)
);
CREATE INDEX IF NOT EXISTS idx_availability_part ON availability (part_id);
`

// PostgresStorage implements Storage on a pgx connection pool
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to Postgres and ensures the schema exists
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStorage{pool: pool}, nil
}

// FindPartByReference returns the part with the given reference, or ErrNotFound
func (s *PostgresStorage) FindPartByReference(ctx context.Context, reference string) (*Part, error) {
	var p Part
	err := s.pool.QueryRow(ctx,
		`SELECT id, reference, name, description, category, image_url, created_at, updated_at
		 FROM parts WHERE reference = $1`, reference).
		Scan(&p.ID, &p.Reference, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPart inserts or updates the part row keyed by reference
func (s *PostgresStorage) UpsertPart(ctx context.Context, part *Part) (*Part, error) {
	var p Part
	err := s.pool.QueryRow(ctx,
		`INSERT INTO parts (reference, name, description, category, image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (reference) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			image_url   = EXCLUDED.image_url,
			updated_at  = now()
		 RETURNING id, reference, name, description, category, image_url, created_at, updated_at`,
		part.Reference, part.Name, part.Description, part.Category, part.ImageURL).
		Scan(&p.ID, &p.Reference, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOrCreateSupplier returns the supplier row, creating it on first use
func (s *PostgresStorage) FindOrCreateSupplier(ctx context.Context, name, website string) (*Supplier, error) {
	var sp Supplier
	// DO UPDATE instead of DO NOTHING so RETURNING yields the row on conflict
	err := s.pool.QueryRow(ctx,
		`INSERT INTO suppliers (name, website)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET website = EXCLUDED.website
		 RETURNING id, name, website, created_at`,
		name, website).
		Scan(&sp.ID, &sp.Name, &sp.Website, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// FindAvailability returns the availability row for the pair, or ErrNotFound
func (s *PostgresStorage) FindAvailability(ctx context.Context, partID, supplierID int64) (*Availability, error) {
	var a Availability
	err := s.pool.QueryRow(ctx,
		`SELECT id, part_id, supplier_id, price, in_stock, url, last_checked
		 FROM availability WHERE part_id = $1 AND supplier_id = $2`, partID, supplierID).
		Scan(&a.ID, &a.PartID, &a.SupplierID, &a.Price, &a.InStock, &a.URL, &a.LastChecked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAvailability inserts or updates the row for the (part, supplier) pair
func (s *PostgresStorage) UpsertAvailability(ctx context.Context, avail *Availability) (*Availability, error) {
	var a Availability
	err := s.pool.QueryRow(ctx,
		`INSERT INTO availability (part_id, supplier_id, price, in_stock, url, last_checked)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (part_id, supplier_id) DO UPDATE SET
			price        = EXCLUDED.price,
			in_stock     = EXCLUDED.in_stock,
			url          = EXCLUDED.url,
			last_checked = EXCLUDED.last_checked
		 RETURNING id, part_id, supplier_id, price, in_stock, url, last_checked`,
		avail.PartID, avail.SupplierID, avail.Price, avail.InStock, avail.URL, avail.LastChecked).
		Scan(&a.ID, &a.PartID, &a.SupplierID, &a.Price, &a.InStock, &a.URL, &a.LastChecked)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Close releases the connection pool
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
