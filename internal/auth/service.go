package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gatehouse.org/internal/obs"
)

// Notifier delivers verification and reset links out of band. Calls are
// fire-and-forget: implementations own their error handling and must
// never block the domain operation that triggered them.
type Notifier interface {
	UserRegistered(ctx context.Context, user *User, verificationToken string)
	PasswordForgotten(ctx context.Context, user *User, resetToken string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) UserRegistered(context.Context, *User, string)    {}
func (NopNotifier) PasswordForgotten(context.Context, *User, string) {}

// Service orchestrates the credential lifecycle: login, refresh,
// registration and the verification/reset token flows.
type Service struct {
	store    Store
	signer   *Signer
	hasher   *Hasher
	tokens   *TokenManager
	notifier Notifier
	now      func() time.Time
	idgen    func() string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithNotifier sets the outbound notification collaborator.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithIDGenerator overrides the identifier source for new users.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.idgen = fn
		}
	}
}

// NewService constructs the credential service.
func NewService(store Store, signer *Signer, hasher *Hasher, tokens *TokenManager, opts ...ServiceOption) (*Service, error) {
	if store == nil || signer == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth: service requires store, signer, hasher and token manager")
	}
	svc := &Service{
		store:    store,
		signer:   signer,
		hasher:   hasher,
		tokens:   tokens,
		notifier: NopNotifier{},
		now:      time.Now,
		idgen:    func() string { return "" },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login validates the password against the stored hash and issues a
// fresh credential pair. Unknown email and wrong password collapse into
// the same ErrUnauthorized. Verification state does not gate login:
// unverified users must be able to reach the resend endpoint.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrUnauthorized
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn comparable time so a missing account is not
			// observably faster than a wrong password.
			_ = s.hasher.Compare(ctx, burnHash, password)
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if err := s.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	return s.mintPair(user)
}

// burnHash is a throwaway bcrypt digest compared against when the
// account does not exist; the result is discarded.
const burnHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Refresh verifies the refresh credential against its dedicated secret,
// re-reads the user's current identity and mints a brand-new pair.
// Validity is purely cryptographic: no persisted refresh store is
// consulted, so a credential stays exchangeable until its expiry even if
// issued before an account change.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	user, err := s.store.Users().Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return s.mintPair(user)
}

// mintPair signs the access and refresh credentials concurrently; the
// two signings are independent and carry the same identity snapshot.
func (s *Service) mintPair(user *User) (TokenPair, error) {
	var pair TokenPair
	var g errgroup.Group
	g.Go(func() error {
		token, exp, err := s.signer.SignAccess(user)
		if err != nil {
			return err
		}
		pair.AccessToken, pair.AccessExpiresAt = token, exp
		return nil
	})
	g.Go(func() error {
		token, exp, err := s.signer.SignRefresh(user)
		if err != nil {
			return err
		}
		pair.RefreshToken, pair.RefreshExpiresAt = token, exp
		return nil
	})
	if err := g.Wait(); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// RegisterInput carries the public registration fields.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Name) == "" {
		errs = errs.Add("name", "name is required")
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		errs = errs.Add("email", "a valid email is required")
	}
	if len(in.Password) < 8 {
		errs = errs.Add("password", "password must be at least 8 characters")
	}
	in.Email = email
	in.Name = strings.TrimSpace(in.Name)
	return errs.OrNil()
}

// Register creates an unverified user and signals the notifier with a
// fresh verification token. Notification delivery is not awaited and
// its failure never fails registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	user := &User{
		ID:           s.idgen(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Type:         TypeUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return "", ValidationErrors{}.Add("email", "email is already registered")
		}
		return "", err
	}
	s.dispatchVerification(ctx, user)
	return "Registered successfully. Please check your email to verify your account.", nil
}

// ResendVerification invalidates outstanding verification tokens for
// the user (reset tokens are untouched) and signals the notifier again.
// The 1/60s throttle lives at the guard layer, not here.
func (s *Service) ResendVerification(ctx context.Context, userID string) (string, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	if user.Verified() {
		return "", fmt.Errorf("%w: email already verified", ErrInvalidInput)
	}
	if err := s.tokens.ClearForUser(ctx, user.ID, TokenEmailVerification); err != nil {
		return "", err
	}
	s.dispatchVerification(ctx, user)
	return "Verification email sent.", nil
}

// VerifyEmail consumes a verification token and marks the bound user
// verified. The token is expired immediately on success.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (string, error) {
	tok, err := s.tokens.Find(ctx, rawToken, TokenEmailVerification)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if err := s.store.Users().SetEmailVerified(ctx, tok.UserID, s.now().UTC()); err != nil {
		return "", err
	}
	if err := s.tokens.Expire(ctx, tok.Token); err != nil {
		return "", err
	}
	return "Email verified successfully.", nil
}

// ForgotPassword looks up the user and signals the notifier with a
// reset token. An unknown email reports ErrNotFound; disclosing account
// existence here is a recorded product decision, not an oversight.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.tokens.ClearForUser(ctx, user.ID, TokenResetPassword); err != nil {
		return "", err
	}
	token, err := s.tokens.Generate(ctx, user.ID, TokenResetPassword)
	if err != nil {
		return "", err
	}
	s.notifier.PasswordForgotten(ctx, user, token)
	return "Password reset email sent.", nil
}

// ResetPassword consumes a reset token, re-hashes and stores the new
// password, then expires the token.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (string, error) {
	if len(newPassword) < 8 {
		return "", ValidationErrors{}.Add("password", "password must be at least 8 characters")
	}
	tok, err := s.tokens.Find(ctx, rawToken, TokenResetPassword)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return "", err
	}
	if err := s.store.Users().SetPassword(ctx, tok.UserID, hash); err != nil {
		return "", err
	}
	if err := s.tokens.Expire(ctx, tok.Token); err != nil {
		return "", err
	}
	return "Password reset successfully.", nil
}

// dispatchVerification mints a verification token and hands it to the
// notifier. The triggering operation already succeeded, so failures here
// do not propagate to the caller; they are logged for operators and the
// user can always hit resend.
func (s *Service) dispatchVerification(ctx context.Context, user *User) {
	token, err := s.tokens.Generate(ctx, user.ID, TokenEmailVerification)
	if err != nil {
		obs.LogEventf("auth.verification.token_failed", "user_id=%s err=%v", user.ID, err)
		return
	}
	s.notifier.UserRegistered(ctx, user, token)
}
