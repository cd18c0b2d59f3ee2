// Package handoff caches the per-lead data the thank-you page needs to fire its
// conversion signal. Entries are read once.
package handoff

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"lead-dispatch/internal/lead"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "lead:handoff:"
	DefaultTTL = 30 * time.Minute
)

// ErrNotFound is returned by Take when the entry expired or was already taken.
var ErrNotFound = stderrors.New("handoff not found")

// Payload is the subset of a lead the thank-you page is allowed to see.
type Payload struct {
	LeadID       string            `json:"leadId"`
	Brand        string            `json:"brand"`
	Model        string            `json:"model"`
	PayoutMethod lead.PayoutMethod `json:"payoutMethod"`
	CryptoToken  string            `json:"cryptoToken,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Lead rebuilds the car and payout part of the lead for the pixel event builders.
func (p Payload) Lead() lead.Lead {
	return lead.Lead{
		Brand:        p.Brand,
		Model:        p.Model,
		PayoutMethod: p.PayoutMethod,
		CryptoToken:  p.CryptoToken,
	}
}

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

func Key(leadID string) string {
	return keyPrefix + leadID
}

// Save stores the handoff for leadID, replacing any previous entry.
func (s *Store) Save(ctx context.Context, leadID string, l lead.Lead) error {
	if leadID == "" {
		return fmt.Errorf("handoff: empty lead id")
	}

	data, err := json.Marshal(Payload{
		LeadID:       leadID,
		Brand:        l.Brand,
		Model:        l.Model,
		PayoutMethod: l.PayoutMethod,
		CryptoToken:  l.CryptoToken,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("handoff: marshal: %w", err)
	}

	if err := s.rdb.Set(ctx, Key(leadID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("handoff: set: %w", err)
	}
	return nil
}

// Take returns and deletes the handoff for leadID.
func (s *Store) Take(ctx context.Context, leadID string) (Payload, error) {
	val, err := s.rdb.GetDel(ctx, Key(leadID)).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, fmt.Errorf("handoff: getdel: %w", err)
	}

	var p Payload
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return Payload{}, fmt.Errorf("handoff: decode: %w", err)
	}
	return p, nil
}
