package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/smartreader/models"
	"github.com/cppla/smartreader/utils"
)

// Outcome is the result of checking a submitted code.
type Outcome string

const (
	OutcomeAccepted        Outcome = "ACCEPTED"
	OutcomeNoMatch         Outcome = "REJECTED_NO_MATCH"
	OutcomeExpired         Outcome = "REJECTED_EXPIRED"
	OutcomeAlreadyVerified Outcome = "ACCEPTED_ALREADY_VERIFIED"
)

// Accepted reports whether the outcome proves ownership of the email.
func (o Outcome) Accepted() bool {
	return o == OutcomeAccepted || o == OutcomeAlreadyVerified
}

// ReasonAdminExempt is returned instead of a code for allowlisted admin emails.
const ReasonAdminExempt = "admin_exempt"

// VerificationPolicy is the code policy loaded from configuration.
type VerificationPolicy struct {
	CodeLength  int
	TTL         time.Duration
	HashCost    int
	AdminEmails []string
}

// VerificationService issues and checks one-time email codes.
// Each email moves NONE -> ACTIVE -> VERIFIED, EXPIRED or SUPERSEDED.
type VerificationService struct {
	codes     CodeStore
	directory Directory
	limiter   utils.IssueLimiter
	mailer    utils.Mailer
	clock     utils.Clock
	locks     *utils.KeyedMutex
	logger    *zap.Logger
	policy    VerificationPolicy
	admins    map[string]bool
	generate  func(n int) (string, error)
}

// VerificationOption customises a VerificationService.
type VerificationOption func(*VerificationService)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func(n int) (string, error)) VerificationOption {
	return func(s *VerificationService) {
		s.generate = gen
	}
}

// WithVerificationLogger sets the logger.
func WithVerificationLogger(logger *zap.Logger) VerificationOption {
	return func(s *VerificationService) {
		s.logger = logger
	}
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(codes CodeStore, directory Directory, limiter utils.IssueLimiter, mailer utils.Mailer, clock utils.Clock, locks *utils.KeyedMutex, policy VerificationPolicy, opts ...VerificationOption) *VerificationService {
	if policy.CodeLength <= 0 {
		policy.CodeLength = 6
	}
	if policy.TTL <= 0 {
		policy.TTL = 10 * time.Minute
	}
	s := &VerificationService{
		codes:     codes,
		directory: directory,
		limiter:   limiter,
		mailer:    mailer,
		clock:     clock,
		locks:     locks,
		logger:    zap.NewNop(),
		policy:    policy,
		admins:    make(map[string]bool, len(policy.AdminEmails)),
		generate:  utils.GenerateVerificationCode,
	}
	for _, e := range policy.AdminEmails {
		s.admins[NormalizeEmail(e)] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue sends a fresh code to email, superseding any earlier one.
func (s *VerificationService) Issue(ctx context.Context, email string) (*IssueResult, error) {
	const op = "verification.Issue"
	email, err := s.checkEmail(op, email)
	if err != nil {
		return nil, err
	}
	if s.admins[email] {
		return &IssueResult{Issued: false, Reason: ReasonAdminExempt}, nil
	}

	unlock := s.locks.Lock(codeKey(email))
	defer unlock()

	registered, err := withRetry(ctx, op, func() (bool, error) {
		return s.directory.EmailRegistered(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, newError(op, ErrAlreadyRegistered, "email is already registered")
	}

	now := s.clock.Now()
	decision, err := s.limiter.Reserve(ctx, email, now)
	if err != nil {
		return nil, storageError(op, err)
	}
	if !decision.Allowed {
		return nil, &Error{
			Op:         op,
			Kind:       ErrRateLimited,
			Message:    rateLimitMessage(decision),
			RetryAfter: decision.RetryAfter,
		}
	}

	code, err := s.generate(s.policy.CodeLength)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrStorage, Message: "generate code", Err: err}
	}
	hash, err := utils.HashCode(code, s.policy.HashCost)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrStorage, Message: "hash code", Err: err}
	}
	expiresAt := now.Add(s.policy.TTL)
	superseded, err := withRetry(ctx, op, func() (int64, error) {
		return s.codes.Replace(ctx, &models.VerificationCode{
			Email:     email,
			CodeHash:  hash,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n", code, int(s.policy.TTL/time.Minute))
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.logger.Warn("verification mail failed", zap.String("email", email), zap.Error(err))
		return nil, &Error{Op: op, Kind: ErrDelivery, Message: "could not deliver verification email", Err: err}
	}

	s.logger.Info("verification code issued",
		zap.String("email", email),
		zap.Int64("superseded", superseded),
		zap.Time("expires_at", expiresAt),
	)
	return &IssueResult{Issued: true, ExpiresAt: &expiresAt}, nil
}

// Verify checks code against the active code of email. Rejections come back as outcomes;
// errors are reserved for bad input and storage failures.
func (s *VerificationService) Verify(ctx context.Context, email, code string) (Outcome, error) {
	const op = "verification.Verify"
	email, err := s.checkEmail(op, email)
	if err != nil {
		return "", err
	}
	if !utils.IsNumericCode(code, s.policy.CodeLength) {
		return "", validationError(op, fmt.Sprintf("code must be exactly %d digits", s.policy.CodeLength))
	}

	unlock := s.locks.Lock(codeKey(email))
	defer unlock()

	rec, err := withRetry(ctx, op, func() (*models.VerificationCode, error) {
		return s.codes.Latest(ctx, email)
	})
	if errors.Is(err, ErrNotFound) {
		return OutcomeNoMatch, nil
	}
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	switch {
	case !utils.CheckCode(rec.CodeHash, code):
		return OutcomeNoMatch, nil
	case rec.IsExpired(now):
		return OutcomeExpired, nil
	case rec.Consumed:
		return OutcomeAlreadyVerified, nil
	}

	consumed, err := withRetry(ctx, op, func() (bool, error) {
		return s.codes.Consume(ctx, rec.ID, now)
	})
	if err != nil {
		return "", err
	}
	if !consumed {
		return OutcomeAlreadyVerified, nil
	}
	s.logger.Info("email verified", zap.String("email", email))
	return OutcomeAccepted, nil
}

// Cooldown returns how long email must wait before another code can be issued.
func (s *VerificationService) Cooldown(ctx context.Context, email string) (time.Duration, error) {
	const op = "verification.Cooldown"
	email, err := s.checkEmail(op, email)
	if err != nil {
		return 0, err
	}
	remaining, err := s.limiter.Cooldown(ctx, email, s.clock.Now())
	if err != nil {
		return 0, storageError(op, err)
	}
	return remaining, nil
}

// CheckEmail reports whether email already belongs to an account.
func (s *VerificationService) CheckEmail(ctx context.Context, email string) (*EmailStatus, error) {
	const op = "verification.CheckEmail"
	email, err := s.checkEmail(op, email)
	if err != nil {
		return nil, err
	}
	registered, err := withRetry(ctx, op, func() (bool, error) {
		return s.directory.EmailRegistered(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	return &EmailStatus{Email: email, Registered: registered}, nil
}

// PurgeExpired deletes codes that expired more than retention ago.
func (s *VerificationService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.codes.PurgeExpired(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		return 0, storageError("verification.PurgeExpired", err)
	}
	if n > 0 {
		s.logger.Info("purged expired verification codes", zap.Int64("count", n))
	}
	return n, nil
}

func (s *VerificationService) checkEmail(op, email string) (string, error) {
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email,max=255"); err != nil {
		return "", validationError(op, "email must be a valid address")
	}
	return email, nil
}

// OutcomeError maps a rejecting outcome onto its error kind, or nil when accepted.
func OutcomeError(o Outcome) error {
	switch o {
	case OutcomeNoMatch:
		return newError("verification.Verify", ErrNoMatch, "code does not match")
	case OutcomeExpired:
		return newError("verification.Verify", ErrExpired, "code has expired")
	}
	return nil
}

func rateLimitMessage(d utils.LimitDecision) string {
	if d.Reason == utils.LimitDaily {
		return "daily verification code limit reached"
	}
	return fmt.Sprintf("please wait %d seconds before requesting another code", int((d.RetryAfter+time.Second-1)/time.Second))
}

func codeKey(email string) string {
	return "code:" + email
}
