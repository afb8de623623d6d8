// Package middleware wraps progress stores and completion recorders with
// cross-cutting persistence behavior.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Middleware wraps a ProgressStore to add behavior.
type Middleware func(ports.ProgressStore) ports.ProgressStore

// Pseudonymizer replaces learner-identifying session and user IDs with keyed
// HMAC-SHA256 digests, so a backend never holds them in the clear. The same
// key must be used to read records back.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer returns a Pseudonymizer keyed with key.
func NewPseudonymizer(key []byte) (*Pseudonymizer, error) {
	if len(key) < 16 {
		return nil, errors.New("pseudonym key must be at least 16 bytes")
	}
	return &Pseudonymizer{key: append([]byte(nil), key...)}, nil
}

// Pseudonym returns the digest stored in place of id.
func (p *Pseudonymizer) Pseudonym(id string) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// Store returns next wrapped. List reports pseudonyms, not the original IDs.
func (p *Pseudonymizer) Store(next ports.ProgressStore) ports.ProgressStore {
	return &pseudonymStore{next: next, p: p}
}

// Middleware adapts Store to the Middleware signature.
func (p *Pseudonymizer) Middleware() Middleware {
	return p.Store
}

// Recorder returns next wrapped.
func (p *Pseudonymizer) Recorder(next ports.CompletionRecorder) ports.CompletionRecorder {
	return &pseudonymRecorder{next: next, p: p}
}

type pseudonymStore struct {
	next ports.ProgressStore
	p    *Pseudonymizer
}

func (s *pseudonymStore) Save(ctx context.Context, sessionID string, progress *domain.Progress) error {
	masked := *progress
	masked.SessionID = s.p.Pseudonym(sessionID)
	return s.next.Save(ctx, masked.SessionID, &masked)
}

func (s *pseudonymStore) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	progress, err := s.next.Load(ctx, s.p.Pseudonym(sessionID))
	if err != nil {
		return nil, err
	}
	restored := *progress
	restored.SessionID = sessionID
	return &restored, nil
}

func (s *pseudonymStore) Delete(ctx context.Context, sessionID string) error {
	return s.next.Delete(ctx, s.p.Pseudonym(sessionID))
}

func (s *pseudonymStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

type pseudonymRecorder struct {
	next ports.CompletionRecorder
	p    *Pseudonymizer
}

func (r *pseudonymRecorder) MarkCompleted(ctx context.Context, userID, tourID string) error {
	return r.next.MarkCompleted(ctx, r.p.Pseudonym(userID), tourID)
}

func (r *pseudonymRecorder) IsCompleted(ctx context.Context, userID, tourID string) (bool, error) {
	return r.next.IsCompleted(ctx, r.p.Pseudonym(userID), tourID)
}

func (r *pseudonymRecorder) Reset(ctx context.Context, userID, tourID string) error {
	return r.next.Reset(ctx, r.p.Pseudonym(userID), tourID)
}
