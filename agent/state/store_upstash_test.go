package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "cs:trace:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "cs:trace:abc")
	}

	if _, err := store.redisKey("   "); !errors.Is(err, ErrInvalidQueryID) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidQueryID", err)
	}
}

func newTestStore(t *testing.T, handler http.HandlerFunc, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreSaveTrace(t *testing.T) {
	t.Parallel()

	var (
		gotCommand []any
		gotAuth    string
	)
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}, WithKeyPrefix("test:"), WithTTL(90*time.Second))

	resp := contractx.ComposedResponse{QueryID: "q-1", Query: "Get customer information for ID 5", Status: contractx.StatusCompleted}
	if err := store.SaveTrace(context.Background(), resp); err != nil {
		t.Fatalf("SaveTrace() error = %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotCommand) != 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "test:q-1" || gotCommand[3] != "EX" {
		t.Fatalf("command = %#v, want SET test:q-1 <payload> EX 90", gotCommand)
	}
	if ttl, _ := gotCommand[4].(float64); ttl != 90 {
		t.Fatalf("ttl = %v, want 90", gotCommand[4])
	}
}

func TestUpstashRedisStoreLoadTrace(t *testing.T) {
	t.Parallel()

	seed := contractx.ComposedResponse{
		QueryID: "q-2",
		Status:  contractx.StatusFailed,
		Intents: []contractx.Intent{contractx.IntentLookup},
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	got, err := store.LoadTrace(context.Background(), "q-2")
	if err != nil {
		t.Fatalf("LoadTrace() error = %v", err)
	}
	if got.QueryID != "q-2" || got.Status != contractx.StatusFailed {
		t.Fatalf("LoadTrace() = %+v", got)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "cs:trace:q-2" {
		t.Fatalf("command = %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadTraceMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})
	if _, err := store.LoadTrace(context.Background(), "nope"); !errors.Is(err, ErrTraceNotFound) {
		t.Fatalf("LoadTrace() error = %v, want ErrTraceNotFound", err)
	}
}

func TestUpstashRedisStoreDeleteTrace(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	})

	if err := store.DeleteTrace(context.Background(), "q-3"); err != nil {
		t.Fatalf("DeleteTrace() error = %v", err)
	}
	if gotCommand[0] != "DEL" || gotCommand[1] != "cs:trace:q-3" {
		t.Fatalf("command = %#v", gotCommand)
	}
}

func TestUpstashRedisStoreSurfacesErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS invalid token"}`)
	})
	err := store.SaveTrace(context.Background(), contractx.ComposedResponse{QueryID: "q-4"})
	if err == nil || err.Error() != "WRONGPASS invalid token" {
		t.Fatalf("SaveTrace() error = %v", err)
	}

	failing := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if err := failing.SaveTrace(context.Background(), contractx.ComposedResponse{QueryID: "q-5"}); err == nil {
		t.Fatal("SaveTrace() error = nil on 502")
	}
}

func TestNewUpstashRedisStoreValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "t"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io", Token: "t"}, WithTTL(-time.Second)); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
