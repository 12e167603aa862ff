package scraper

import (
	"time"

	"creach-t/sparepartsworker/config"
	"creach-t/sparepartsworker/internal/fetch"
)

func boolPtr(v bool) *bool { return &v }

// CreateSources builds the registered supplier sources from the
// configuration and registers their normalization rules. Disabled suppliers
// are skipped.
func CreateSources(cfg *config.Config, fetcher *fetch.Executor, normalizer *Normalizer) []Source {
	var sources []Source

	configurations := []struct {
		enabled bool
		cfg     SourceConfig
	}{
		{
			// piecesdetachees24: reference shipped as an article number
			// label, delivery text doubles as the stock signal
			enabled: cfg.PD24Enabled,
			cfg: SourceConfig{
				SiteID:      "piecesdetachees24",
				Website:     "https://www.piecesdetachees24.com/",
				SearchURL:   cfg.PD24URL,
				SearchTerms: cfg.SearchTerms,
				MaxPages:    cfg.MaxPages,
				BaseURL:     "https://www.piecesdetachees24.com",
				BlockKey:    "pd24_blocked",
				BlockTime:   500 * time.Second,
				Selectors: Selectors{
					ProductList: ".product-item",
					Reference:   ".product-item-articlenumber",
					Name:        ".product-item-title",
					Link:        ".product-item-title a",
					Image:       ".product-item-image img",
					Price:       ".product-item-price",
					Stock:       ".product-item-delivery",
				},
				Rules: SiteRules{
					RefPrefixes:     []string{"numéro d'article :", "numéro d'article:"},
					DecimalComma:    boolPtr(true),
					InStockWords:    []string{"en stock", "livrable"},
					OutOfStockWords: []string{"rupture", "indisponible", "non livrable"},
				},
			},
		},
		{
			// sosaccessoire: no reference label on some cards, falls back
			// to the PrestaShop product id; products shown without an
			// availability badge are sold as in stock
			enabled: cfg.SosAccessoireEnabled,
			cfg: SourceConfig{
				SiteID:         "sosaccessoire",
				Website:        "https://www.sosaccessoire.com/",
				SearchURL:      cfg.SosAccessoireURL,
				SearchTerms:    cfg.SearchTerms,
				MaxPages:       cfg.MaxPages,
				BaseURL:        "https://www.sosaccessoire.com",
				BlockKey:       "sosaccessoire_blocked",
				BlockTime:      500 * time.Second,
				RefSynthPrefix: "SOS-",
				Selectors: Selectors{
					ProductList: ".product-miniature",
					Reference:   ".product-reference",
					RefAttr:     "data-id-product",
					Name:        ".product-title a",
					Link:        ".product-title a",
					Image:       ".product-thumbnail img",
					ImageAttrs:  []string{"src", "data-src"},
					Price:       ".product-price-and-shipping .price",
					Stock:       ".product-availability",
					Description: ".product-description",
				},
				Rules: SiteRules{
					RefPrefixes:     []string{"référence :", "référence:"},
					DecimalComma:    boolPtr(true),
					InStockWords:    []string{"disponible", "en stock"},
					OutOfStockWords: []string{"rupture", "indisponible", "épuisé"},
					DefaultInStock:  boolPtr(true),
				},
			},
		},
		{
			// 1001pieces: listing carries no description, the detail page
			// does
			enabled: cfg.MillePiecesEnabled,
			cfg: SourceConfig{
				SiteID:      "1001pieces",
				Website:     "https://www.1001pieces.com/",
				SearchURL:   cfg.MillePiecesURL,
				SearchTerms: cfg.SearchTerms,
				MaxPages:    cfg.MaxPages,
				BaseURL:     "https://www.1001pieces.com",
				BlockKey:    "1001pieces_blocked",
				BlockTime:   500 * time.Second,
				FetchDetails:      true,
				DetailDescription: ".product-description",
				Selectors: Selectors{
					ProductList: ".product-miniature",
					Reference:   ".product-reference span",
					Name:        ".product-title a",
					Link:        ".product-title a",
					Image:       ".product-thumbnail img",
					ImageAttrs:  []string{"src", "data-src"},
					Price:       ".product-price-and-shipping .price",
					Stock:       "#product-availability, .product-availability",
				},
				Rules: SiteRules{
					RefPrefixes:     []string{"référence :", "référence:", "réf.", "ref."},
					DecimalComma:    boolPtr(true),
					InStockWords:    []string{"en stock", "disponible", "expédié"},
					OutOfStockWords: []string{"rupture", "indisponible", "épuisé"},
				},
			},
		},
	}

	for _, c := range configurations {
		if !c.enabled {
			continue
		}
		normalizer.Register(c.cfg.SiteID, c.cfg.Rules)
		sources = append(sources, NewConfigurableSource(c.cfg, fetcher))
	}

	return sources
}
