package scraper

import (
	"context"
	"time"
)

// RawRecord is an untyped, site-specific field bag produced by a source
// adapter. Fields a site does not expose or a page did not yield stay empty.
type RawRecord struct {
	RefText     string
	Name        string
	Description string
	Category    string
	PriceText   string
	StockText   string
	URL         string
	ImageURL    string
}

// NormalizedRecord is the canonical shape after normalization, keyed by
// Reference. Price and InStock are nil when the raw text was absent or
// unparseable.
type NormalizedRecord struct {
	Reference   string
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       *float64
	InStock     *bool
	URL         string
}

// Source is the contract every supplier adapter implements
type Source interface {
	// FetchCandidates retrieves raw part records from the supplier site
	FetchCandidates(ctx context.Context) ([]RawRecord, error)

	// GetSiteID returns the supplier identifier for logging and storage
	GetSiteID() string

	// GetWebsite returns the supplier's base website URL
	GetWebsite() string
}

// SourceResult holds one source's contribution to a run
type SourceResult struct {
	Fetched    int
	Normalized int
	Rejected   int
	Reconciled int
	Failed     int
	Err        error
}

// RunSummary aggregates the outcome of one scrape run
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	PerSource map[string]SourceResult
}

// Succeeded returns the number of sources that completed without a
// source-level failure
func (s RunSummary) Succeeded() int {
	n := 0
	for _, res := range s.PerSource {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// AvailabilityEvent is published after an availability row is created or its
// observed price/stock changed
type AvailabilityEvent struct {
	Reference string   `json:"reference"`
	Supplier  string   `json:"supplier"`
	Price     *float64 `json:"price,omitempty"`
	InStock   *bool    `json:"in_stock,omitempty"`
	URL       string   `json:"url,omitempty"`
	CheckedAt string   `json:"checked_at"`
}
