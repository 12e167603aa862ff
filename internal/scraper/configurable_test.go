package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creach-t/sparepartsworker/internal/fetch"
	"creach-t/sparepartsworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="product-item">
  <div class="product-item-articlenumber">Numéro d'article : X123</div>
  <h2 class="product-item-name"><a href="/pieces/x123">Courroie de transmission</a></h2>
  <img class="product-item-img" src="/img/x123.jpg"/>
  <span class="product-item-price">12,50 €</span>
  <span class="product-item-stock">En stock</span>
</div>
<div class="product-item">
  <div class="product-item-articlenumber">Numéro d'article : Y456</div>
  <h2 class="product-item-name"><a href="https://cdn.example/pieces/y456">Filtre à charbon</a></h2>
  <span class="product-item-price">8,00 €</span>
</div>
</body></html>`

func quickFetcher() *fetch.Executor {
	return fetch.NewExecutor(fetch.Policy{
		MaxAttempts:       1,
		PerAttemptTimeout: 5 * time.Second,
	}, nil)
}

func listingSelectors() Selectors {
	return Selectors{
		ProductList: ".product-item",
		Reference:   ".product-item-articlenumber",
		Name:        ".product-item-name",
		Link:        ".product-item-name a",
		Image:       ".product-item-img",
		Price:       ".product-item-price",
		Stock:       ".product-item-stock",
	}
}

func TestFetchCandidatesExtractsListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, listingPage)
			return
		}
		fmt.Fprint(w, `<html><body></body></html>`)
	}))
	defer server.Close()

	src := NewConfigurableSource(SourceConfig{
		SiteID:      "piecesdetachees24",
		Website:     server.URL,
		SearchURL:   server.URL + "/recherche?q=%s&page=%d",
		SearchTerms: []string{"courroie"},
		MaxPages:    3,
		BaseURL:     server.URL,
		Selectors:   listingSelectors(),
	}, quickFetcher())

	records, err := src.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Numéro d'article : X123", first.RefText)
	assert.Equal(t, "Courroie de transmission", first.Name)
	assert.Equal(t, server.URL+"/pieces/x123", first.URL)
	assert.Equal(t, server.URL+"/img/x123.jpg", first.ImageURL)
	assert.Equal(t, "12,50 €", first.PriceText)
	assert.Equal(t, "En stock", first.StockText)
	assert.Equal(t, "courroie", first.Category)

	// absolute links pass through untouched, missing stock stays empty
	second := records[1]
	assert.Equal(t, "https://cdn.example/pieces/y456", second.URL)
	assert.Empty(t, second.StockText)
}

func TestFetchCandidatesSynthesizesReference(t *testing.T) {
	page := `<html><body>
<article class="product-miniature" data-id-product="4821">
  <h3 class="product-title"><a href="/produit/4821">Résistance de four</a></h3>
  <img class="product-thumb" data-src="/img/4821.jpg"/>
  <span class="price">45,90 €</span>
</article>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	src := NewConfigurableSource(SourceConfig{
		SiteID:         "sosaccessoire",
		Website:        server.URL,
		SearchURL:      server.URL + "/recherche?q=%s&page=%d",
		SearchTerms:    []string{"four"},
		MaxPages:       1,
		BaseURL:        server.URL,
		RefSynthPrefix: "SOS-",
		Selectors: Selectors{
			ProductList: ".product-miniature",
			RefAttr:     "data-id-product",
			Name:        ".product-title",
			Link:        ".product-title a",
			Image:       ".product-thumb",
			ImageAttrs:  []string{"src", "data-src"},
			Price:       ".price",
		},
	}, quickFetcher())

	records, err := src.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SOS-4821", records[0].RefText)
	// src attribute absent, data-src fallback used
	assert.Equal(t, server.URL+"/img/4821.jpg", records[0].ImageURL)
}

func TestFetchCandidatesEnrichesFromDetail(t *testing.T) {
	listing := `<html><body>
<div class="product-item">
  <div class="ref">REF-77</div>
  <a class="product-link" href="/pieces/ref-77">Pompe de vidange</a>
</div>
</body></html>`
	detail := `<html><body>
<div class="product-description">Pompe de vidange universelle 30W</div>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pieces/ref-77" {
			fmt.Fprint(w, detail)
			return
		}
		fmt.Fprint(w, listing)
	}))
	defer server.Close()

	src := NewConfigurableSource(SourceConfig{
		SiteID:            "1001pieces",
		Website:           server.URL,
		SearchURL:         server.URL + "/recherche?q=%s&page=%d",
		SearchTerms:       []string{"pompe"},
		MaxPages:          1,
		BaseURL:           server.URL,
		FetchDetails:      true,
		DetailDescription: ".product-description",
		Selectors: Selectors{
			ProductList: ".product-item",
			Reference:   ".ref",
			Name:        ".product-link",
			Link:        ".product-link",
		},
	}, quickFetcher())

	records, err := src.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pompe de vidange universelle 30W", records[0].Description)
}

func TestFetchCandidatesFailsWithoutRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewConfigurableSource(SourceConfig{
		SiteID:      "piecesdetachees24",
		Website:     server.URL,
		SearchURL:   server.URL + "/recherche?q=%s&page=%d",
		SearchTerms: []string{"courroie"},
		MaxPages:    1,
		BaseURL:     server.URL,
		Selectors:   listingSelectors(),
	}, quickFetcher())

	_, err := src.FetchCandidates(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSourceFailure(err))
}

func TestFetchCandidatesSkipsEmptyNodes(t *testing.T) {
	page := `<html><body>
<div class="product-item"></div>
<div class="product-item">
  <div class="ref">REF-1</div>
</div>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	src := NewConfigurableSource(SourceConfig{
		SiteID:      "piecesdetachees24",
		Website:     server.URL,
		SearchURL:   server.URL + "/recherche?q=%s&page=%d",
		SearchTerms: []string{"courroie"},
		MaxPages:    1,
		BaseURL:     server.URL,
		Selectors: Selectors{
			ProductList: ".product-item",
			Reference:   ".ref",
			Name:        ".name",
		},
	}, quickFetcher())

	records, err := src.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "REF-1", records[0].RefText)
}
