package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
)

func anomalousRecord() model.Record {
	return model.Record{
		Provider: "Y",
		Item:     "GPT",
		Region:   "us-east",
		Category: "llm_token",
		Prices:   map[string]decimal.Decimal{model.FieldInputPrice: decimal.NewFromFloat(2.0)},
	}
}

func TestHTTPLookupSuccess(t *testing.T) {
	var gotReq lookupRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/lookup" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("auth header not forwarded, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found":true,"prices":{"output_price":"8.0"}}`))
	}))
	defer server.Close()

	lk := NewHTTP(HTTPOptions{BaseURL: server.URL, AuthHeader: "Bearer test-token"}, zerolog.Nop())

	prices, err := lk.LookupPrices(context.Background(), anomalousRecord(), model.IssueIncompletePricing)
	if err != nil {
		t.Fatalf("LookupPrices failed: %v", err)
	}
	if got, ok := prices[model.FieldOutputPrice]; !ok || !got.Equal(decimal.NewFromFloat(8.0)) {
		t.Fatalf("expected output_price=8.0, got %+v", prices)
	}

	if gotReq.Provider != "Y" || gotReq.Item != "GPT" || gotReq.Issue != string(model.IssueIncompletePricing) {
		t.Fatalf("request body mismatch: %+v", gotReq)
	}
}

func TestHTTPLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	lk := NewHTTP(HTTPOptions{BaseURL: server.URL}, zerolog.Nop())

	_, err := lk.LookupPrices(context.Background(), anomalousRecord(), model.IssueIncompletePricing)
	if !errors.Is(err, repair.ErrNotFound) {
		t.Fatalf("404 must map to ErrNotFound, got %v", err)
	}
}

func TestHTTPLookupFoundFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"found":false}`))
	}))
	defer server.Close()

	lk := NewHTTP(HTTPOptions{BaseURL: server.URL}, zerolog.Nop())

	_, err := lk.LookupPrices(context.Background(), anomalousRecord(), model.IssueIncompletePricing)
	if !errors.Is(err, repair.ErrNotFound) {
		t.Fatalf("found=false must map to ErrNotFound, got %v", err)
	}
}

func TestHTTPLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	lk := NewHTTP(HTTPOptions{BaseURL: server.URL}, zerolog.Nop())

	_, err := lk.LookupPrices(context.Background(), anomalousRecord(), model.IssueIncompletePricing)
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if errors.Is(err, repair.ErrNotFound) {
		t.Fatalf("infrastructure failure must not look like not-found: %v", err)
	}
}

func TestHTTPLookupMissingBaseURL(t *testing.T) {
	lk := NewHTTP(HTTPOptions{}, zerolog.Nop())

	if _, err := lk.LookupPrices(context.Background(), anomalousRecord(), model.IssueIncompletePricing); err == nil {
		t.Fatal("expected configuration error without a base url")
	}
}
