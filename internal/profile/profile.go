// Package profile guarantees that every authenticated identity has a
// corresponding row in the profiles table, synthesizing a unique username on
// first login.
package profile

import "time"

// TableName is the backing table for profiles.
const TableName = "profiles"

// Profile is the public-facing metadata of one authenticated identity.
// One-to-one with the auth user; created lazily, never deleted by this core.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	UpdatedAt time.Time `json:"updated_at"`
}

// newProfileRow is the insert payload: only the columns first login knows.
type newProfileRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
