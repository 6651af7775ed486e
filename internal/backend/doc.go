// Package backend is the client for a Supabase-style backend project:
// password auth (GoTrue-compatible REST) plus row-oriented storage
// (PostgREST-compatible REST). The rest of the core treats it as an opaque
// capability provider; nothing outside this package speaks HTTP or inspects
// wire-level error codes.
//
// One live Client exists per connection identity, handed out by Registry.
// Auth state is push-based: collaborators subscribe via OnAuthStateChange
// and receive SignedIn/SignedOut/TokenRefreshed events.
package backend
