package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"creach-t/sparepartsworker/pkg/errors"
)

// priceRegex matches the first numeric run in a price text, including
// thousands and decimal separators ("1 249,99 €" -> "1 249,99")
var priceRegex = regexp.MustCompile(`\d[\d\s\x{00a0}.,]*`)

// SiteRules is the per-supplier normalization policy
type SiteRules struct {
	// RefPrefixes are site-specific labels stripped from the head of the
	// reference text ("Référence : ABC-1" -> "ABC-1")
	RefPrefixes []string

	// DecimalComma states whether the site writes decimals with a comma.
	// Nil means unknown; the last separator in the text wins.
	DecimalComma *bool

	// InStockWords and OutOfStockWords classify the stock text
	InStockWords    []string
	OutOfStockWords []string

	// DefaultInStock applies when the site exposes no stock text at all
	DefaultInStock *bool
}

// defaultRules returns the fallback policy for French supplier sites
func defaultRules() SiteRules {
	return SiteRules{
		InStockWords:    []string{"en stock", "disponible", "livrable"},
		OutOfStockWords: []string{"rupture", "indisponible", "épuisé", "non disponible"},
	}
}

// Normalizer maps raw adapter records into the canonical shape, applying the
// registered per-site rules
type Normalizer struct {
	rules map[string]SiteRules
}

// NewNormalizer creates a normalizer with no site rules registered
func NewNormalizer() *Normalizer {
	return &Normalizer{rules: make(map[string]SiteRules)}
}

// Register sets the normalization rules for a site
func (n *Normalizer) Register(siteID string, rules SiteRules) {
	n.rules[siteID] = rules
}

// rulesFor returns the registered rules for a site, or the defaults
func (n *Normalizer) rulesFor(siteID string) SiteRules {
	if r, ok := n.rules[siteID]; ok {
		return r
	}
	return defaultRules()
}

// Normalize converts a raw record into the canonical shape. A record whose
// reference is empty after cleaning cannot be reconciled to any part and is
// rejected, never raised.
func (n *Normalizer) Normalize(raw RawRecord, siteID string) (NormalizedRecord, error) {
	rules := n.rulesFor(siteID)

	reference := normalizeReference(raw.RefText, rules.RefPrefixes)
	if reference == "" {
		return NormalizedRecord{}, errors.NewParse(siteID, "empty reference after normalization")
	}

	rec := NormalizedRecord{
		Reference:   reference,
		Name:        strings.TrimSpace(raw.Name),
		Description: strings.TrimSpace(raw.Description),
		Category:    strings.TrimSpace(raw.Category),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		URL:         strings.TrimSpace(raw.URL),
		Price:       parsePrice(raw.PriceText, rules.DecimalComma),
		InStock:     parseStock(raw.StockText, rules),
	}
	return rec, nil
}

// normalizeReference trims, strips site prefixes and case-folds the
// reference text
func normalizeReference(text string, prefixes []string) string {
	ref := strings.TrimSpace(text)
	lower := strings.ToLower(ref)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			ref = strings.TrimSpace(ref[len(prefix):])
			lower = strings.ToLower(ref)
		}
	}
	return strings.ToLower(strings.TrimSpace(ref))
}

// parsePrice extracts a non-negative price from free text, or nil when the
// text has no parseable number. decimalComma selects the locale; nil falls
// back to treating the last separator as the decimal one.
func parsePrice(text string, decimalComma *bool) *float64 {
	match := priceRegex.FindString(text)
	if match == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(match))
	cleaned = strings.TrimRight(cleaned, ".,")

	switch {
	case decimalComma != nil && *decimalComma:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case decimalComma != nil && !*decimalComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	default:
		cleaned = resolveAmbiguousSeparators(cleaned)
	}

	// a second dot can survive malformed input; keep only the last
	if first, last := strings.Index(cleaned, "."), strings.LastIndex(cleaned, "."); first != last {
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

// resolveAmbiguousSeparators treats the last of '.'/',' as the decimal
// separator and drops the rest as thousands marks
func resolveAmbiguousSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", strings.Count(s, ","))
		// only the final comma was decimal; earlier ones were thousands
		if strings.Count(s, ".") > 1 {
			last := strings.LastIndex(s, ".")
			s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
		}
		return s
	}
	return strings.ReplaceAll(s, ",", "")
}

// parseStock classifies the stock text into in-stock, out-of-stock or
// unknown (nil)
func parseStock(text string, rules SiteRules) *bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return rules.DefaultInStock
	}
	for _, word := range rules.OutOfStockWords {
		if strings.Contains(cleaned, word) {
			v := false
			return &v
		}
	}
	for _, word := range rules.InStockWords {
		if strings.Contains(cleaned, word) {
			v := true
			return &v
		}
	}
	return nil
}
