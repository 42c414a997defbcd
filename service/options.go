package service

import "github.com/goliatone/go-crud-service/auth"

// Options are the per call flags every operation accepts.
type Options struct {
	// SkipThrow returns nil instead of a NotFound error.
	SkipThrow bool
	// Lean skips relation loading on reads.
	Lean bool
	// Select restricts the columns read.
	Select []string
	// Fields restricts the columns an update writes.
	Fields []string
	// SkipHooks bypasses every pre and post hook.
	SkipHooks bool
	// Viewer is the caller, when known.
	Viewer *auth.Account
	// SocketClientID identifies the caller's realtime connection so
	// notifications can skip it.
	SocketClientID string
}

// ViewerID returns the viewer id or "".
func (o Options) ViewerID() string {
	if o.Viewer == nil {
		return ""
	}
	return o.Viewer.ID
}

