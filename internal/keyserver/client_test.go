package keyserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchByFingerprint_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") != "0xDEADBEEF" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("certificate-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	raw, found, err := c.FetchByFingerprint(context.Background(), "DEADBEEF")
	if err != nil {
		t.Fatalf("FetchByFingerprint: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if string(raw) != "certificate-bytes" {
		t.Fatalf("raw = %q, want certificate-bytes", raw)
	}
}

func TestFetchByFingerprint_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, found, err := c.FetchByFingerprint(context.Background(), "NOTFOUND")
	if err != nil {
		t.Fatalf("FetchByFingerprint: %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestFetchByFingerprint_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.FetchByFingerprint(context.Background(), "X")
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}
