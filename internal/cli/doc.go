// Package cli is the interactive front end: a line-oriented REPL over the
// auth façade, the posts service and the local drafts store.
package cli
