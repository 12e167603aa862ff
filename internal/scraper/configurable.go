package scraper

import (
	"bytes"
	"context"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"creach-t/sparepartsworker/internal/fetch"
	"creach-t/sparepartsworker/logger"
	"creach-t/sparepartsworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Selectors contains CSS selectors for the fields of a supplier's listing page
type Selectors struct {
	ProductList string
	Reference   string
	// RefAttr is an attribute on the product node used when the Reference
	// selector yields nothing (e.g. data-id-product)
	RefAttr     string
	Name        string
	Link        string
	Image       string
	// ImageAttrs are tried in order on the image node; defaults to src
	ImageAttrs  []string
	Price       string
	Stock       string
	Description string
}

// SourceConfig contains the configuration for one supplier source
type SourceConfig struct {
	SiteID      string
	Website     string
	// SearchURL is a format template taking the escaped search term and
	// the page number
	SearchURL   string
	SearchTerms []string
	MaxPages    int
	BaseURL     string
	BlockKey    string
	BlockTime   time.Duration
	// RefSynthPrefix is prepended to the RefAttr value when a reference is
	// synthesized from a product id
	RefSynthPrefix string
	// FetchDetails enables a detail-page fetch to fill the description when
	// the listing does not carry one
	FetchDetails      bool
	DetailDescription string
	Selectors         Selectors
	Rules             SiteRules
}

// ConfigurableSource is a supplier adapter driven entirely by selectors.
// It never retries network calls itself; the fetch executor owns that.
type ConfigurableSource struct {
	cfg     SourceConfig
	fetcher *fetch.Executor
	log     *logger.Logger
}

// NewConfigurableSource creates a source for the given supplier configuration
func NewConfigurableSource(cfg SourceConfig, fetcher *fetch.Executor) *ConfigurableSource {
	if len(cfg.Selectors.ImageAttrs) == 0 {
		cfg.Selectors.ImageAttrs = []string{"src"}
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	return &ConfigurableSource{
		cfg:     cfg,
		fetcher: fetcher,
		log:     logger.ForSource(cfg.SiteID),
	}
}

// GetSiteID returns the supplier identifier
func (s *ConfigurableSource) GetSiteID() string {
	return s.cfg.SiteID
}

// GetWebsite returns the supplier's base website URL
func (s *ConfigurableSource) GetWebsite() string {
	return s.cfg.Website
}

// FetchCandidates walks the supplier's search listings over the configured
// terms and pages. A listing fetch failure before any record was collected
// fails the source; afterwards it only ends that term's pagination. Records
// with unresolved fields are returned partial, not dropped.
func (s *ConfigurableSource) FetchCandidates(ctx context.Context) ([]RawRecord, error) {
	var records []RawRecord

	for _, term := range s.cfg.SearchTerms {
		for page := 1; page <= s.cfg.MaxPages; page++ {
			url := fmt.Sprintf(s.cfg.SearchURL, neturl.QueryEscape(term), page)
			body, err := s.fetcher.Fetch(ctx, fetch.Request{
				URL:      url,
				BlockKey: s.cfg.BlockKey,
				BlockFor: s.cfg.BlockTime,
			})
			if err != nil {
				if len(records) == 0 {
					return nil, errors.NewSource(s.cfg.SiteID, "listing fetch failed", err)
				}
				s.log.Warn().
					Err(err).
					Str("term", term).
					Int("page", page).
					Msg("Listing page failed, keeping records collected so far")
				break
			}

			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				if len(records) == 0 {
					return nil, errors.NewSource(s.cfg.SiteID, "listing parse failed", err)
				}
				break
			}

			items := doc.Find(s.cfg.Selectors.ProductList)
			if items.Length() == 0 {
				// end of results for this term
				break
			}

			items.Each(func(_ int, sel *goquery.Selection) {
				if rec := s.processItem(ctx, sel, term); rec != nil {
					records = append(records, *rec)
				}
			})

			s.log.Debug().
				Str("term", term).
				Int("page", page).
				Int("items", items.Length()).
				Msg("Listing page processed")
		}
	}

	return records, nil
}

// processItem extracts a raw record from one product node. Fields the page
// does not yield stay empty for the normalizer to deal with; only nodes with
// neither a reference nor a name are skipped outright.
func (s *ConfigurableSource) processItem(ctx context.Context, sel *goquery.Selection, term string) *RawRecord {
	sels := s.cfg.Selectors
	rec := RawRecord{Category: term}

	if sels.Reference != "" {
		rec.RefText = strings.TrimSpace(sel.Find(sels.Reference).First().Text())
	}
	if rec.RefText == "" && sels.RefAttr != "" {
		if id, ok := sel.Attr(sels.RefAttr); ok && strings.TrimSpace(id) != "" {
			rec.RefText = s.cfg.RefSynthPrefix + strings.TrimSpace(id)
		}
	}

	if sels.Name != "" {
		rec.Name = strings.TrimSpace(sel.Find(sels.Name).First().Text())
	}

	if rec.RefText == "" && rec.Name == "" {
		return nil
	}

	if sels.Link != "" {
		if href, ok := sel.Find(sels.Link).First().Attr("href"); ok {
			rec.URL = s.resolveURL(strings.TrimSpace(href))
		}
	}

	if sels.Image != "" {
		imgSel := sel.Find(sels.Image).First()
		for _, attr := range sels.ImageAttrs {
			if src, ok := imgSel.Attr(attr); ok && strings.TrimSpace(src) != "" {
				rec.ImageURL = s.resolveURL(strings.TrimSpace(src))
				break
			}
		}
	}

	if sels.Price != "" {
		rec.PriceText = strings.TrimSpace(sel.Find(sels.Price).First().Text())
	}
	if sels.Stock != "" {
		rec.StockText = strings.TrimSpace(sel.Find(sels.Stock).First().Text())
	}
	if sels.Description != "" {
		rec.Description = strings.TrimSpace(sel.Find(sels.Description).First().Text())
	}

	if s.cfg.FetchDetails && rec.Description == "" && rec.URL != "" {
		s.enrichFromDetail(ctx, &rec)
	}

	return &rec
}

// enrichFromDetail fetches the product detail page for the description.
// A failure here degrades the single record, never the source.
func (s *ConfigurableSource) enrichFromDetail(ctx context.Context, rec *RawRecord) {
	body, err := s.fetcher.Fetch(ctx, fetch.Request{
		URL:      rec.URL,
		BlockKey: s.cfg.BlockKey,
		BlockFor: s.cfg.BlockTime,
	})
	if err != nil {
		s.log.Debug().Err(err).Str("url", rec.URL).Msg("Detail page fetch failed, record kept partial")
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}
	rec.Description = strings.TrimSpace(doc.Find(s.cfg.DetailDescription).First().Text())
}

// resolveURL makes a relative link absolute against the source's base URL
func (s *ConfigurableSource) resolveURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}
