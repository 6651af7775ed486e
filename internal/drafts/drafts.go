// Package drafts stores unsaved writing locally, so a post in progress
// survives restarts and never depends on the connected backend. Backed by a
// sqlite file in the state directory.
package drafts

import "time"

// Draft is one locally stored piece of writing in progress.
type Draft struct {
	ID      string
	Title   string
	Content string
	SavedAt time.Time
}
