// Package normalize maps raw Bluesky post views into the canonical post
// shape the feed pipeline works with.
package normalize

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/stephanj/skyfeed/internal/bluesky"
)

// Author of a canonical post.
type Author struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Post is the canonical post record. Immutable once constructed; the URI
// is its identity for deduplication.
type Post struct {
	URI       string    `json:"uri"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Author    Author    `json:"author"`
	Images    []string  `json:"images,omitempty"`
}

// Normalize converts a raw post view into a canonical Post. Posts missing
// their identity, author handle, or record are rejected; missing optional
// fields (avatar, createdAt) map to zero values.
func Normalize(raw bluesky.Post) (Post, error) {
	if raw.URI == "" {
		return Post{}, errors.New("post has no uri")
	}
	if raw.Author == nil || raw.Author.Handle == "" {
		return Post{}, fmt.Errorf("post %s has no author handle", raw.URI)
	}
	if raw.Record == nil {
		return Post{}, fmt.Errorf("post %s has no record", raw.URI)
	}

	// Upstream timestamps are RFC 3339; a missing or garbled value maps
	// to the zero time instead of failing the post.
	createdAt, _ := time.Parse(time.RFC3339, raw.Record.CreatedAt)

	return Post{
		URI:       raw.URI,
		Text:      DecodeText(raw.Record.Text),
		CreatedAt: createdAt,
		Author: Author{
			Handle:      raw.Author.Handle,
			DisplayName: DecodeText(raw.Author.DisplayName),
			Avatar:      raw.Author.Avatar,
		},
		Images: ExtractImages(raw.Embed),
	}, nil
}

// DecodeText resolves HTML entities in upstream text. Apostrophes in
// particular sometimes arrive double-encoded (&amp;#39;), so a second pass
// runs when the first one changed the text and an entity remains. Clean
// text passes through unchanged, which makes decoding idempotent.
func DecodeText(s string) string {
	out := html.UnescapeString(s)
	if out != s && strings.ContainsRune(out, '&') {
		out = html.UnescapeString(out)
	}
	return out
}

// imageExtractor pulls candidate image URLs from one embed variant.
type imageExtractor func(*bluesky.Embed) []string

// The known embed shapes, probed in discovery order. Shapes can coexist
// on a single post, so every extractor runs and the union is kept.
var imageExtractors = []imageExtractor{
	directImages,
	mediaImages,
	externalThumb,
	typedImages,
}

// ExtractImages collects fullsize image URLs across all embed variants
// present. First occurrence wins; empty and unparseable entries are
// dropped.
func ExtractImages(embed *bluesky.Embed) []string {
	if embed == nil {
		return nil
	}

	var images []string
	seen := make(map[string]struct{})
	for _, extract := range imageExtractors {
		for _, u := range extract(embed) {
			if !validImageURL(u) {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			images = append(images, u)
		}
	}

	return images
}

func directImages(embed *bluesky.Embed) []string {
	urls := make([]string, 0, len(embed.Images))
	for _, img := range embed.Images {
		urls = append(urls, img.Fullsize)
	}
	return urls
}

func mediaImages(embed *bluesky.Embed) []string {
	if embed.Media == nil {
		return nil
	}
	urls := make([]string, 0, len(embed.Media.Images))
	for _, img := range embed.Media.Images {
		urls = append(urls, img.Fullsize)
	}
	return urls
}

func externalThumb(embed *bluesky.Embed) []string {
	if embed.External == nil || embed.External.Thumb == "" {
		return nil
	}
	return []string{embed.External.Thumb}
}

func typedImages(embed *bluesky.Embed) []string {
	if embed.Type != bluesky.EmbedTypeImages {
		return nil
	}
	return directImages(embed)
}

func validImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
