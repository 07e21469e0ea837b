// Package display provides terminal output formatting for skyfeed.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/stephanj/skyfeed/internal/feed"
	"github.com/stephanj/skyfeed/internal/normalize"
)

const separator = " • "

// TerminalFormatter formats feed posts for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatPost formats a single post for display.
func (f *TerminalFormatter) FormatPost(p normalize.Post) string {
	var lines []string

	name := p.Author.DisplayName
	if name == "" {
		name = p.Author.Handle
	}
	header := name + separator + "@" + p.Author.Handle
	if age := f.FormatTimestamp(p.CreatedAt); age != "" {
		header += separator + age
	}
	lines = append(lines, header)

	if text := strings.TrimSpace(p.Text); text != "" {
		lines = append(lines, "  "+text)
	}

	switch n := len(p.Images); {
	case n == 1:
		lines = append(lines, "  [1 image]")
	case n > 1:
		lines = append(lines, fmt.Sprintf("  [%d images]", n))
	}

	lines = append(lines, "  "+feed.PostURL(p))

	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed formats a feed page for display.
func (f *TerminalFormatter) FormatFeed(page feed.Page) string {
	if len(page.Posts) == 0 {
		return "No posts found.\n"
	}

	var sb strings.Builder
	for i, p := range page.Posts {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.FormatPost(p))
	}
	if page.HasMore {
		sb.WriteString("\nMore posts available.\n")
	}

	return sb.String()
}

// FormatTimestamp formats a post age as relative time, switching to a
// calendar date after a week. A zero time renders as empty.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	diff := f.now().Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
