// Package file provides a file-based credential store.
//
// Each identity is stored as a pretty-printed JSON file in the token
// directory so a user can inspect it, or delete it to force
// re-authorisation. Writes go to a temporary file in the same directory
// which is then renamed over the target; rename is atomic on the same
// filesystem, so concurrent writers from several processes never produce
// a torn file and no locking is needed.
package file
