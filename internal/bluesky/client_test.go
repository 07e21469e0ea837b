// Package bluesky tests document the expected behavior of the API client.
//
// External dependencies are mocked with httptest servers injected via
// WithBaseURL; no test talks to the real network.
package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/com.atproto.server.createSession" {
			t.Errorf("expected createSession path, got %q", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		var creds map[string]string
		if err := json.Unmarshal(body, &creds); err != nil {
			t.Fatalf("request body is not JSON: %v", err)
		}
		if creds["identifier"] != "alice.bsky.social" || creds["password"] != "app-password" {
			t.Errorf("unexpected credentials payload: %v", creds)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessJwt":  "access-123",
			"refreshJwt": "refresh-456",
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	tokens, err := client.CreateSession(context.Background(), "alice.bsky.social", "app-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.AccessJwt != "access-123" {
		t.Errorf("expected access token access-123, got %q", tokens.AccessJwt)
	}
	if tokens.RefreshJwt != "refresh-456" {
		t.Errorf("expected refresh token refresh-456, got %q", tokens.RefreshJwt)
	}
}

func TestCreateSession_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.CreateSession(context.Background(), "alice.bsky.social", "wrong"); err == nil {
		t.Fatal("expected an error for rejected credentials")
	}
}

func TestCreateSession_MissingTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"accessJwt": "only-half"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.CreateSession(context.Background(), "alice.bsky.social", "pw"); err == nil {
		t.Fatal("a 200 response without both tokens must be an error")
	}
}

func TestResolveHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/com.atproto.identity.resolveHandle" {
			t.Errorf("expected resolveHandle path, got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("handle"); got != "alice.bsky.social" {
			t.Errorf("expected handle query param, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"did": "did:plc:abc123"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	did, err := client.ResolveHandle(context.Background(), "alice.bsky.social")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if did != "did:plc:abc123" {
		t.Errorf("expected did:plc:abc123, got %q", did)
	}
}

func TestResolveHandle_UnknownHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.ResolveHandle(context.Background(), "nobody.invalid")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthorFeed(t *testing.T) {
	mockResponse := map[string]interface{}{
		"feed": []map[string]interface{}{
			{
				"post": map[string]interface{}{
					"uri": "at://did:plc:abc/app.bsky.feed.post/3k1",
					"author": map[string]interface{}{
						"did":         "did:plc:abc",
						"handle":      "alice.bsky.social",
						"displayName": "Alice",
					},
					"record": map[string]interface{}{
						"text":      "hello from the feed",
						"createdAt": "2026-08-30T12:00:00Z",
					},
				},
			},
			{
				"reason": map[string]interface{}{"$type": "app.bsky.feed.defs#reasonRepost"},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-access-token" {
			t.Errorf("expected Bearer token in Authorization header, got %q", auth)
		}
		if r.URL.Path != "/app.bsky.feed.getAuthorFeed" {
			t.Errorf("expected getAuthorFeed path, got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("actor"); got != "did:plc:abc" {
			t.Errorf("expected actor query param, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("expected limit=20, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mockResponse)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	posts, err := client.AuthorFeed(context.Background(), "test-access-token", "did:plc:abc", DefaultLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 unwrapped post (items without a post view are skipped), got %d", len(posts))
	}
	if posts[0].URI != "at://did:plc:abc/app.bsky.feed.post/3k1" {
		t.Errorf("unexpected uri: %q", posts[0].URI)
	}
	if posts[0].Record == nil || posts[0].Record.Text != "hello from the feed" {
		t.Errorf("record text not decoded: %+v", posts[0].Record)
	}
}

func TestSearchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app.bsky.feed.searchPosts" {
			t.Errorf("expected searchPosts path, got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "#golang" {
			t.Errorf("expected q=#golang, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"posts": []map[string]interface{}{
				{
					"uri":    "at://did:plc:def/app.bsky.feed.post/3k2",
					"author": map[string]interface{}{"handle": "bob.bsky.social"},
					"record": map[string]interface{}{"text": "#golang rocks", "createdAt": "2026-08-30T11:00:00Z"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	posts, err := client.SearchPosts(context.Background(), "token", "#golang", DefaultLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Author == nil || posts[0].Author.Handle != "bob.bsky.social" {
		t.Errorf("unexpected author: %+v", posts[0].Author)
	}
}

func TestSearchPosts_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.SearchPosts(context.Background(), "stale-token", "#golang", DefaultLimit)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorFeed_IgnoresUnexpectedFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor": "opaque-cursor-we-ignore",
			"feed": []map[string]interface{}{
				{
					"post": map[string]interface{}{
						"uri":           "at://did:plc:abc/app.bsky.feed.post/3k3",
						"author":        map[string]interface{}{"handle": "alice.bsky.social"},
						"record":        map[string]interface{}{"text": "hi", "createdAt": "2026-08-30T10:00:00Z"},
						"likeCount":     12,
						"replyCount":    3,
						"brandNewField": map[string]interface{}{"surprise": true},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	posts, err := client.AuthorFeed(context.Background(), "token", "did:plc:abc", DefaultLimit)
	if err != nil {
		t.Fatalf("new upstream fields must not break decoding, got error: %v", err)
	}
	if len(posts) != 1 || posts[0].URI != "at://did:plc:abc/app.bsky.feed.post/3k3" {
		t.Fatalf("expected the post to decode despite extra fields, got %+v", posts)
	}
}
