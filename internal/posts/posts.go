// Package posts is the row-level service for published writing: posts and
// their comments, stored in the connected backend project. Everything here
// operates through a caller-supplied client, so the service itself carries
// no connection state and survives project switches untouched.
package posts

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mekod/ledger/internal/textx"
)

const (
	// TableName is the backing table for posts.
	TableName = "posts"
	// CommentsTable is the backing table for comments.
	CommentsTable = "comments"

	maxSlugLen = 50
)

// Visibility controls who can read a post.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// Post is one row of the posts table.
type Post struct {
	ID         int64      `json:"id"`
	AuthorID   string     `json:"author_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Slug       string     `json:"slug"`
	Visibility Visibility `json:"visibility"`
	Published  bool       `json:"is_published"`
	InsertedAt time.Time  `json:"inserted_at"`
}

// Excerpt returns the post's text with markup stripped, truncated to at most
// n runes.
func (p *Post) Excerpt(n int) string {
	return textx.Excerpt(p.Content, n)
}

// WordCount counts the words of the post's text content.
func (p *Post) WordCount() int {
	return textx.CountWords(textx.StripHTML(p.Content))
}

// ReadingTimeMinutes estimates how long the post takes to read.
func (p *Post) ReadingTimeMinutes() int {
	return textx.ReadingTimeMinutes(textx.StripHTML(p.Content))
}

// Comment is one row of the comments table.
type Comment struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	InsertedAt time.Time `json:"inserted_at"`
}

// Slugify turns a title into a URL slug: lowercased, Turkish letters
// transliterated, whitespace to dashes, everything outside [a-z0-9-]
// dropped, at most 50 characters. A title with nothing usable falls back to
// a time-suffixed slug so the result is never empty.
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch r {
		case 'ğ':
			b.WriteRune('g')
		case 'ü':
			b.WriteRune('u')
		case 'ş':
			b.WriteRune('s')
		case 'ı':
			b.WriteRune('i')
		case 'ö':
			b.WriteRune('o')
		case 'ç':
			b.WriteRune('c')
		default:
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				b.WriteRune(r)
			case unicode.IsSpace(r), r == '-', r == '_':
				b.WriteRune('-')
			}
		}
	}

	slug := strings.Trim(collapseDashes(b.String()), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		ms := strconv.FormatInt(time.Now().UnixMilli(), 10)
		return "post-" + ms[len(ms)-6:]
	}
	return slug
}

func collapseDashes(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		if r == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
