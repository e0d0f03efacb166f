package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "gatehouse"

// Claims is the self-contained session credential payload. It mirrors
// the user's identity at signing time; refresh re-reads the user so the
// payload never drifts more than one refresh interval behind storage.
type Claims struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Type            UserType   `json:"type"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	jwt.RegisteredClaims
}

// Verified reports whether the claims carry a verification timestamp.
func (c *Claims) Verified() bool {
	return c != nil && c.EmailVerifiedAt != nil
}

// Signer issues and verifies the two kinds of session credentials.
// Access and refresh credentials are signed with distinct secrets so a
// refresh credential can never pass access verification or vice versa.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewSigner constructs a Signer. Both secrets are required and must
// differ; TTLs fall back to 24h access / 7d refresh.
func NewSigner(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrInvalidInput
	}
	if accessSecret == refreshSecret {
		return nil, ErrInvalidInput
	}
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Signer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock overrides the time source; test use only.
func (s *Signer) WithClock(fn func() time.Time) *Signer {
	if fn != nil {
		s.now = fn
	}
	return s
}

// SignAccess signs a short-lived access credential for the user.
func (s *Signer) SignAccess(u *User) (string, time.Time, error) {
	return s.sign(u, s.accessSecret, s.accessTTL)
}

// SignRefresh signs a longer-lived refresh credential for the user.
func (s *Signer) SignRefresh(u *User) (string, time.Time, error) {
	return s.sign(u, s.refreshSecret, s.refreshTTL)
}

func (s *Signer) sign(u *User, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Name:            u.Name,
		Email:           u.Email,
		Type:            u.Type,
		EmailVerifiedAt: u.EmailVerifiedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess validates an access credential.
func (s *Signer) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh validates a refresh credential.
func (s *Signer) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *Signer) verify(token string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(func() time.Time {
		return s.now()
	}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
