package scraper

import (
	"testing"

	"creach-t/sparepartsworker/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeReference(t *testing.T) {
	n := NewNormalizer()
	n.Register("test", SiteRules{
		RefPrefixes: []string{"référence :", "référence:"},
	})

	testCases := []struct {
		refText  string
		expected string
	}{
		{"ABC-123", "abc-123"},
		{"  X123  ", "x123"},
		{"Référence : WPL-4055", "wpl-4055"},
		{"référence: DC97", "dc97"},
		{"X123 ", "x123"},
	}

	for _, tc := range testCases {
		rec, err := n.Normalize(RawRecord{RefText: tc.refText, Name: "part"}, "test")
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, rec.Reference)
	}
}

func TestNormalizeRejectsEmptyReference(t *testing.T) {
	n := NewNormalizer()
	n.Register("test", SiteRules{RefPrefixes: []string{"référence :"}})

	for _, refText := range []string{"", "   ", "Référence :  "} {
		_, err := n.Normalize(RawRecord{RefText: refText, Name: "part"}, "test")
		assert.Error(t, err)
		assert.True(t, errors.IsRejection(err))
	}
}

func TestNormalizePriceCommaDecimal(t *testing.T) {
	n := NewNormalizer()
	n.Register("fr", SiteRules{DecimalComma: boolPtr(true)})

	testCases := []struct {
		priceText string
		expected  *float64
	}{
		{"12,50 €", floatPtr(12.5)},
		{"1.249,99 €", floatPtr(1249.99)},
		{"1 249,99 €", floatPtr(1249.99)},
		{"19 €", floatPtr(19)},
		{"", nil},
		{"prix sur demande", nil},
	}

	for _, tc := range testCases {
		rec, err := n.Normalize(RawRecord{RefText: "r1", PriceText: tc.priceText}, "fr")
		assert.NoError(t, err)
		if tc.expected == nil {
			assert.Nil(t, rec.Price, "price text %q", tc.priceText)
		} else {
			assert.NotNil(t, rec.Price, "price text %q", tc.priceText)
			assert.InDelta(t, *tc.expected, *rec.Price, 0.001)
		}
	}
}

func TestNormalizePricePeriodDecimal(t *testing.T) {
	n := NewNormalizer()
	n.Register("en", SiteRules{DecimalComma: boolPtr(false)})

	rec, err := n.Normalize(RawRecord{RefText: "r1", PriceText: "$1,249.99"}, "en")
	assert.NoError(t, err)
	assert.InDelta(t, 1249.99, *rec.Price, 0.001)
}

func TestNormalizePriceAmbiguousLocale(t *testing.T) {
	// no policy registered: the last separator wins
	n := NewNormalizer()

	rec, err := n.Normalize(RawRecord{RefText: "r1", PriceText: "1.234,56"}, "unknown")
	assert.NoError(t, err)
	assert.InDelta(t, 1234.56, *rec.Price, 0.001)

	rec, err = n.Normalize(RawRecord{RefText: "r1", PriceText: "1,234.56"}, "unknown")
	assert.NoError(t, err)
	assert.InDelta(t, 1234.56, *rec.Price, 0.001)
}

func TestNormalizeStock(t *testing.T) {
	n := NewNormalizer()
	n.Register("test", SiteRules{
		InStockWords:    []string{"en stock", "disponible"},
		OutOfStockWords: []string{"rupture", "non disponible"},
	})

	testCases := []struct {
		stockText string
		expected  *bool
	}{
		{"En stock", boolPtr(true)},
		{"Disponible sous 24h", boolPtr(true)},
		{"Rupture de stock", boolPtr(false)},
		{"Non disponible", boolPtr(false)},
		{"livraison gratuite", nil},
		{"", nil},
	}

	for _, tc := range testCases {
		rec, err := n.Normalize(RawRecord{RefText: "r1", StockText: tc.stockText}, "test")
		assert.NoError(t, err)
		if tc.expected == nil {
			assert.Nil(t, rec.InStock, "stock text %q", tc.stockText)
		} else {
			assert.NotNil(t, rec.InStock, "stock text %q", tc.stockText)
			assert.Equal(t, *tc.expected, *rec.InStock)
		}
	}
}

func TestNormalizeDefaultInStock(t *testing.T) {
	n := NewNormalizer()
	n.Register("test", SiteRules{DefaultInStock: boolPtr(true)})

	rec, err := n.Normalize(RawRecord{RefText: "r1"}, "test")
	assert.NoError(t, err)
	assert.NotNil(t, rec.InStock)
	assert.True(t, *rec.InStock)
}

func floatPtr(v float64) *float64 { return &v }
