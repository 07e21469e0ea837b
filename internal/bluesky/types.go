// Package bluesky provides a client for the Bluesky xrpc API.
//
// This package enables skyfeed to:
// - Authenticate with an identifier and app password (createSession)
// - Resolve account handles to stable DIDs
// - Fetch an account's author feed
// - Search posts by query (hashtags)
package bluesky

// Tokens is the JWT pair issued by the createSession endpoint.
type Tokens struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Author is a post author as returned by the API.
type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

// Record is the original post record (text and creation time).
type Record struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// EmbedImage is a single image attachment.
type EmbedImage struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

// EmbedExternal is an external link card.
type EmbedExternal struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
	Thumb string `json:"thumb"`
}

// EmbedMedia carries images nested under record-with-media embeds.
type EmbedMedia struct {
	Images []EmbedImage `json:"images"`
}

// EmbedTypeImages is the $type tag of a plain images embed.
const EmbedTypeImages = "app.bsky.embed.images"

// Embed is the union of the embed variants the feed cares about. The
// variants are not mutually exclusive in practice, so every field decodes
// independently and consumers probe all of them.
type Embed struct {
	Type     string         `json:"$type"`
	Images   []EmbedImage   `json:"images"`
	Media    *EmbedMedia    `json:"media"`
	External *EmbedExternal `json:"external"`
}

// Post is a raw post view as returned by the author feed and search
// endpoints. The author feed wraps each view in a feed item; the client
// unwraps it so callers see one shape.
type Post struct {
	URI    string  `json:"uri"`
	CID    string  `json:"cid"`
	Author *Author `json:"author"`
	Record *Record `json:"record"`
	Embed  *Embed  `json:"embed"`
}
