package feed

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/stephanj/skyfeed/internal/bluesky"
	"github.com/stephanj/skyfeed/internal/normalize"
	"github.com/stephanj/skyfeed/internal/session"
)

// API is the subset of the Bluesky client the pipeline depends on.
type API interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	AuthorFeed(ctx context.Context, accessToken, actor string, limit int) ([]bluesky.Post, error)
	SearchPosts(ctx context.Context, accessToken, query string, limit int) ([]bluesky.Post, error)
}

// Sessions is the session lifecycle the pipeline depends on.
type Sessions interface {
	Ensure(ctx context.Context, force bool) (session.Session, error)
	Clear() error
}

// Builder runs the fetch-merge-filter-sort pipeline.
type Builder struct {
	api      API
	sessions Sessions
	logger   *slog.Logger
	limit    int
}

// NewBuilder creates a feed builder. A nil logger falls back to the
// default slog logger.
func NewBuilder(api API, sessions Sessions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		api:      api,
		sessions: sessions,
		logger:   logger,
		limit:    bluesky.DefaultLimit,
	}
}

// BuildFeed fetches all configured sources, merges their posts, and
// returns the requested page of the filtered, deduplicated,
// reverse-chronological feed.
//
// Per-source failures degrade the result set instead of failing the
// request; only credential and authentication problems propagate. When
// every fetch comes back empty and at least one source failed with an
// authentication signal, the builder forces one re-authentication and
// retries the fetch stage before giving up.
func (b *Builder) BuildFeed(ctx context.Context, q Query) (Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	sess, err := b.sessions.Ensure(ctx, false)
	if err != nil {
		return Page{}, err
	}

	raw, sawAuthFailure := b.collect(ctx, sess.AccessToken, q)
	if len(raw) == 0 && sawAuthFailure {
		b.logger.Info("retrying fetch after forced re-authentication")
		sess, err = b.sessions.Ensure(ctx, true)
		if err != nil {
			return Page{}, err
		}
		raw, _ = b.collect(ctx, sess.AccessToken, q)
	}

	posts := b.shape(raw, q.Blacklist)

	// Approximate availability signal; see the package comment.
	hasMore := len(posts) >= size

	start := (page - 1) * size
	if start >= len(posts) {
		return Page{Posts: []normalize.Post{}, HasMore: hasMore}, nil
	}
	end := start + size
	if end > len(posts) {
		end = len(posts)
	}

	return Page{Posts: posts[start:end], HasMore: hasMore}, nil
}

// TestConnection performs a forced authentication and reports the result
// without fetching any posts.
func (b *Builder) TestConnection(ctx context.Context) error {
	_, err := b.sessions.Ensure(ctx, true)
	return err
}

// ClearCache invalidates the cached session, forcing re-authentication on
// the next use.
func (b *Builder) ClearCache() error {
	return b.sessions.Clear()
}

type source struct {
	kind string // "account" or "hashtag"
	name string
}

// collect fetches every configured source concurrently. Results land in a
// per-source slot so the merged order is deterministic regardless of
// arrival order. The second return reports whether any source failed with
// an authentication signal.
func (b *Builder) collect(ctx context.Context, accessToken string, q Query) ([]bluesky.Post, bool) {
	var sources []source
	for _, h := range q.Accounts {
		if h = strings.TrimSpace(h); h != "" {
			sources = append(sources, source{kind: "account", name: h})
		}
	}
	for _, tag := range q.Hashtags {
		if tag = strings.TrimSpace(tag); tag != "" {
			sources = append(sources, source{kind: "hashtag", name: tag})
		}
	}

	results := make([][]bluesky.Post, len(sources))
	authFailures := make([]bool, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source) {
			defer wg.Done()

			var posts []bluesky.Post
			var err error
			switch src.kind {
			case "account":
				posts, err = b.fetchByAccount(ctx, accessToken, src.name)
			case "hashtag":
				posts, err = b.fetchByHashtag(ctx, accessToken, src.name)
			}
			if err != nil {
				// One broken source must not blank the whole feed.
				b.logger.Warn("source fetch failed",
					"kind", src.kind, "name", src.name, "error", err)
				authFailures[i] = errors.Is(err, bluesky.ErrUnauthorized)
				return
			}
			results[i] = posts
		}(i, src)
	}
	wg.Wait()

	var merged []bluesky.Post
	sawAuthFailure := false
	for i := range results {
		merged = append(merged, results[i]...)
		sawAuthFailure = sawAuthFailure || authFailures[i]
	}

	return merged, sawAuthFailure
}

// fetchByAccount resolves the handle to a DID and fetches its author feed.
func (b *Builder) fetchByAccount(ctx context.Context, accessToken, handle string) ([]bluesky.Post, error) {
	did, err := b.api.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return b.api.AuthorFeed(ctx, accessToken, did, b.limit)
}

// fetchByHashtag searches posts for the tag, normalizing the # prefix.
func (b *Builder) fetchByHashtag(ctx context.Context, accessToken, tag string) ([]bluesky.Post, error) {
	return b.api.SearchPosts(ctx, accessToken, "#"+strings.TrimPrefix(tag, "#"), b.limit)
}

// shape normalizes the merged raw posts, applies the blacklist,
// deduplicates by URI (first occurrence wins), and sorts newest first.
func (b *Builder) shape(raw []bluesky.Post, blacklist []string) []normalize.Post {
	blocked := make(map[string]struct{}, len(blacklist))
	for _, h := range blacklist {
		if h = strings.TrimSpace(h); h != "" {
			blocked[strings.ToLower(h)] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	posts := make([]normalize.Post, 0, len(raw))
	for _, r := range raw {
		p, err := normalize.Normalize(r)
		if err != nil {
			b.logger.Debug("dropping post", "error", err)
			continue
		}
		if _, ok := blocked[strings.ToLower(p.Author.Handle)]; ok {
			continue
		}
		if _, ok := seen[p.URI]; ok {
			continue
		}
		seen[p.URI] = struct{}{}
		posts = append(posts, p)
	}

	// Upstream timestamps collide at second resolution; the stable sort
	// keeps the original relative order for ties.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts
}
