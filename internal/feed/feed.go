// Package feed merges posts from configured Bluesky accounts and hashtags
// into a single reverse-chronological feed.
//
// Pagination is approximate by design: each source is re-fetched as a
// fixed-size window rather than followed by cursor, so HasMore reports
// whether the surviving post count reached the page size. Filtering can
// therefore make it both under- and over-report availability. This
// matches what the upstream API offers in the subset used.
package feed

import (
	"net/url"
	"strings"

	"github.com/stephanj/skyfeed/internal/normalize"
)

// DefaultPageSize is the number of posts per feed page.
const DefaultPageSize = 20

// Query selects which sources feed the aggregation and which page of the
// merged result to return.
type Query struct {
	// Accounts are Bluesky handles whose author feeds are merged in.
	Accounts []string

	// Hashtags are tags (with or without a leading #) searched upstream.
	Hashtags []string

	// Blacklist lists author handles whose posts are removed from the
	// merged feed. Matched case-insensitively.
	Blacklist []string

	// Page is the 1-based page to return; values below 1 mean page 1.
	Page int

	// PageSize is the number of posts per page; values below 1 fall back
	// to DefaultPageSize.
	PageSize int
}

// Page is one slice of the aggregated feed.
type Page struct {
	Posts   []normalize.Post `json:"posts"`
	HasMore bool             `json:"hasMore"`
}

const profileBaseURL = "https://bsky.app/profile/"

// PostURL derives the public bsky.app URL for a post from its at:// URI,
// falling back to the author's profile when the URI carries no post rkey.
func PostURL(p normalize.Post) string {
	if p.Author.Handle == "" {
		return "https://bsky.app"
	}

	const marker = "/app.bsky.feed.post/"
	if i := strings.LastIndex(p.URI, marker); i >= 0 {
		rkey := p.URI[i+len(marker):]
		if rkey != "" && !strings.Contains(rkey, "/") {
			return profileBaseURL + url.PathEscape(p.Author.Handle) + "/post/" + url.PathEscape(rkey)
		}
	}

	return profileBaseURL + url.PathEscape(p.Author.Handle)
}
