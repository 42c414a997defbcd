package reqctx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Waypoint names a checkpoint a request passed through.
type Waypoint string

const (
	OnRequest  Waypoint = "onRequest"
	AfterGuard Waypoint = "afterGuard"
	Controller Waypoint = "controller"
	Service    Waypoint = "service"
	Repository Waypoint = "repository"
	OnResponse Waypoint = "onResponse"
	OnError    Waypoint = "onError"
)

// Verbose reports whether the waypoint belongs to the inner layers that are
// only recorded when verbose tracing is enabled.
func (w Waypoint) Verbose() bool {
	switch w {
	case Controller, Service, Repository:
		return true
	}
	return false
}

// HTTPInfo is the request metadata captured at entry.
type HTTPInfo struct {
	Method    string `json:"method,omitempty"`
	URL       string `json:"url,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	Host      string `json:"host,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Origin    string `json:"origin,omitempty"`
	Referer   string `json:"referer,omitempty"`
}

// Viewer is the authenticated caller identity copied into the state after
// the authentication guard ran.
type Viewer struct {
	ID    string `json:"viewerId,omitempty"`
	Name  string `json:"viewerName"`
	Email string `json:"viewerEmail"`
}

// State is the per request context. It is safe for concurrent use; the
// waypoint list only grows.
type State struct {
	mu        sync.RWMutex
	requestID string
	startedAt time.Time
	duration  time.Duration
	http      HTTPInfo
	viewer    Viewer
	waypoints []Waypoint
	verbose   bool
}

// Option configures a State.
type Option func(*State)

// WithVerboseTrace records the controller, service and repository waypoints.
func WithVerboseTrace(enabled bool) Option {
	return func(s *State) {
		s.verbose = enabled
	}
}

// WithStartTime overrides the start time.
func WithStartTime(t time.Time) Option {
	return func(s *State) {
		s.startedAt = t
	}
}

// New creates the state for one request. An empty id is replaced with a
// generated one.
func New(requestID string, opts ...Option) *State {
	if requestID == "" {
		requestID = NewRequestID()
	}
	s := &State{
		requestID: requestID,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRequestID generates a request id.
func NewRequestID() string {
	return uuid.NewString()
}

func (s *State) RequestID() string {
	return s.requestID
}

func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// SetHTTP records the HTTP metadata.
func (s *State) SetHTTP(info HTTPInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.http = info
}

func (s *State) HTTP() HTTPInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.http
}

// SetViewer records the caller identity.
func (s *State) SetViewer(v Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = v
}

func (s *State) Viewer() Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

// AddWaypoint appends w unless it is already present or is a verbose
// waypoint while verbose tracing is off. It reports whether w was added.
func (s *State) AddWaypoint(w Waypoint) bool {
	if w.Verbose() && !s.verbose {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.waypoints {
		if existing == w {
			return false
		}
	}
	s.waypoints = append(s.waypoints, w)
	return true
}

// Waypoints returns a copy of the recorded waypoints in insertion order.
func (s *State) Waypoints() []Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Waypoint(nil), s.waypoints...)
}

// Finish records the request duration and returns it.
func (s *State) Finish() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration = time.Since(s.startedAt)
	return s.duration
}

// Snapshot is a read only copy of the state.
type Snapshot struct {
	RequestID string     `json:"requestId"`
	StartedAt time.Time  `json:"requestStartTime"`
	Duration  int64      `json:"requestDuration,omitempty"`
	Trace     []Waypoint `json:"trace"`
	HTTPInfo
	Viewer
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		RequestID: s.requestID,
		StartedAt: s.startedAt,
		Duration:  s.duration.Milliseconds(),
		Trace:     append([]Waypoint{}, s.waypoints...),
		HTTPInfo:  s.http,
		Viewer:    s.viewer,
	}
}

type stateKey struct{}

// With stores st in ctx.
func With(ctx context.Context, st *State) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stateKey{}, st)
}

// From returns the state stored in ctx.
func From(ctx context.Context) (*State, bool) {
	if ctx == nil {
		return nil, false
	}
	st, ok := ctx.Value(stateKey{}).(*State)
	return st, ok && st != nil
}

// RequestID returns the request id in ctx, or "".
func RequestID(ctx context.Context) string {
	if st, ok := From(ctx); ok {
		return st.RequestID()
	}
	return ""
}

// ViewerID returns the viewer id in ctx, or "".
func ViewerID(ctx context.Context) string {
	if st, ok := From(ctx); ok {
		return st.Viewer().ID
	}
	return ""
}

// AddWaypoint records w on the state in ctx, if any.
func AddWaypoint(ctx context.Context, w Waypoint) {
	if st, ok := From(ctx); ok {
		st.AddWaypoint(w)
	}
}
