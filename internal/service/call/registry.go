// Package call tracks call sessions from webhook arrival through post-call
// handoff and coordinates the collaborator round trips at each stage.
package call

import (
	"errors"
	"sync"

	"ai-voice-receptionist/internal/models"
)

// Errors for registry operations.
var (
	ErrNoCallSid      = errors.New("call has no SID")
	ErrDuplicateCall  = errors.New("call already registered")
	ErrUnknownCall    = errors.New("unknown call")
	ErrAlreadyClaimed = errors.New("call already claimed by another stream")
)

// Registry holds the sessions of in-flight calls, keyed by call SID. A
// session is inserted when the voice webhook accepts the call, claimed by
// exactly one media stream, and removed exactly once at finalization.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*models.CallSession
}

// NewRegistry creates an empty call registry.
func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]*models.CallSession),
	}
}

// Register stores a new session. Sessions without a call SID are never
// stored; a SID already present is rejected.
func (r *Registry) Register(sess *models.CallSession) error {
	if sess == nil || sess.CallSid == "" {
		return ErrNoCallSid
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calls[sess.CallSid]; exists {
		return ErrDuplicateCall
	}
	r.calls[sess.CallSid] = sess
	return nil
}

// Claim hands the session to a media stream. Each session is claimable
// exactly once; a second stream announcing the same call gets
// ErrAlreadyClaimed and must not disturb the first.
func (r *Registry) Claim(callSid string) (*models.CallSession, error) {
	r.mu.RLock()
	sess, ok := r.calls[callSid]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrUnknownCall
	}
	if !sess.Claim() {
		return nil, ErrAlreadyClaimed
	}
	return sess, nil
}

// Take removes and returns the session. Under concurrent termination paths
// for the same call, exactly one caller receives the session; everyone else
// gets ok=false.
func (r *Registry) Take(callSid string) (*models.CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.calls[callSid]
	if ok {
		delete(r.calls, callSid)
	}
	return sess, ok
}

// Active returns the number of in-flight calls.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
