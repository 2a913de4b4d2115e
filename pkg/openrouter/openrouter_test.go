package openrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeaderTransportSetsAttribution(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	cfg := &Config{SiteURL: " https://support.example.com ", SiteName: "Customer Service"}
	client := &http.Client{Transport: &headerTransport{base: http.DefaultTransport, headers: cfg.headers()}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if v := got.Get("HTTP-Referer"); v != "https://support.example.com" {
		t.Fatalf("HTTP-Referer = %q", v)
	}
	if v := got.Get("X-Title"); v != "Customer Service" {
		t.Fatalf("X-Title = %q", v)
	}
}

func TestHeadersOmitsEmptyValues(t *testing.T) {
	cfg := &Config{SiteURL: "  "}
	if h := cfg.headers(); len(h) != 0 {
		t.Fatalf("headers() = %v, want none", h)
	}
}
