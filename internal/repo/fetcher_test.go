package repo

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGetJSONCachesSuccessfulResponses(t *testing.T) {
	hits := 0
	stub := newStubCache()
	f := NewFetcher(FetcherOptions{Cache: stub, AppToken: "tok"})
	stubUpstream(f, upstreamFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.Header.Get("X-App-Token") != "tok" {
			t.Fatalf("expected app token header, got %q", req.Header.Get("X-App-Token"))
		}
		return jsonResponse(http.StatusOK, `[{"boro":"Queens","score":"12"}]`), nil
	}))

	ctx := context.Background()
	url := "https://data.example/resource/x.json?$limit=1"

	var first []map[string]string
	if err := f.GetJSON(ctx, "socrata", url, time.Hour, &first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || first[0]["boro"] != "Queens" {
		t.Fatalf("unexpected decode: %+v", first)
	}

	var second []map[string]string
	if err := f.GetJSON(ctx, "socrata", url, time.Hour, &second); err != nil {
		t.Fatalf("unexpected cached error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("cache miss triggered network call; hits=%d", hits)
	}
	if stub.ttls[CacheKey(url)] != time.Hour {
		t.Fatalf("expected caller ttl to be stored, got %v", stub.ttls[CacheKey(url)])
	}
}

func TestGetJSONDoesNotCacheFailures(t *testing.T) {
	hits := 0
	stub := newStubCache()
	f := NewFetcher(FetcherOptions{Cache: stub})
	stubUpstream(f, upstreamFunc(func(*http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
	}))

	var out []map[string]string
	for i := 0; i < 2; i++ {
		err := f.GetJSON(context.Background(), "socrata", "https://data.example/a.json", time.Hour, &out)
		se, ok := IsStatus(err)
		if !ok || se.Code != http.StatusInternalServerError {
			t.Fatalf("expected status error, got %v", err)
		}
	}
	if hits != 2 {
		t.Fatalf("failed responses must not be cached; hits=%d", hits)
	}
	if stub.len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", stub.len())
	}
}

func TestGetJSONDecodeErrorNotCached(t *testing.T) {
	stub := newStubCache()
	f := NewFetcher(FetcherOptions{Cache: stub})
	stubUpstream(f, upstreamFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html>maintenance</html>`), nil
	}))

	var out []map[string]string
	err := f.GetJSON(context.Background(), "census", "https://api.example/acs", time.Hour, &out)
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("expected decode error, got %v", err)
	}
	if stub.len() != 0 {
		t.Fatalf("undecodable body must not be cached")
	}
}

func TestGetJSONTransportError(t *testing.T) {
	f := NewFetcher(FetcherOptions{})
	stubUpstream(f, upstreamFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))

	var out any
	err := f.GetJSON(context.Background(), "airnow", "https://airnow.example/obs", 0, &out)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if _, ok := IsStatus(err); ok {
		t.Fatalf("transport error should not be a status error")
	}
}

func TestGetJSONZeroTTLBypassesCache(t *testing.T) {
	hits := 0
	stub := newStubCache()
	f := NewFetcher(FetcherOptions{Cache: stub})
	stubUpstream(f, upstreamFunc(func(*http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(http.StatusOK, `[]`), nil
	}))

	var out []any
	for i := 0; i < 2; i++ {
		if err := f.GetJSON(context.Background(), "socrata", "https://data.example/b.json", 0, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hits != 2 || stub.len() != 0 {
		t.Fatalf("zero ttl should skip the cache; hits=%d entries=%d", hits, stub.len())
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	a := CacheKey("https://x/y?z=1")
	if a != CacheKey("https://x/y?z=1") {
		t.Fatalf("cache key not deterministic")
	}
	if a == CacheKey("https://x/y?z=2") {
		t.Fatalf("distinct urls collided")
	}
	if !strings.HasPrefix(a, "healthfeeds:http:") {
		t.Fatalf("unexpected prefix: %s", a)
	}
}
