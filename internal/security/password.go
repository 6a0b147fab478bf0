package security

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor for stored passwords.
const DefaultCost = 12

// MaxPasswordBytes is the longest input bcrypt reads.
const MaxPasswordBytes = 72

// Hasher runs bcrypt with at most concurrency hashes in flight. Waiting for a slot
// honours the caller's context.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewHasher(cost int, concurrency int64) *Hasher {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(concurrency)}
}

// Hash password hashes a plain text password with bcrypt.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Compare reports whether plain matches hash. A mismatch is not an error. Input longer
// than bcrypt reads never matches, so a stored prefix cannot be used to log in.
func (h *Hasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	if len(plain) > MaxPasswordBytes {
		return false, nil
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	// a malformed or empty hash never matches
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil, nil
}
