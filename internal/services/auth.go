package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"occasio/internal/domain"
)

const (
	minPasswordLen         = 8
	verificationCodeDigits = 6
	defaultVerificationTTL = 30 * time.Minute
	defaultSignUpRole      = domain.RoleUser
)

var (
	emailRegexp     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	verifyCodeRegex = regexp.MustCompile(`^\d{6}$`)
)

type authService struct {
	userRepo         domain.UserRepository
	roleRepo         domain.RoleRepository
	verificationRepo domain.VerificationRepository
	hasher           domain.PasswordHasher
	tokenIssuer      domain.TokenIssuer
	tokenExpiry      time.Duration
	verificationTTL  time.Duration
	emailService     domain.EmailService
	frontendURL      string
	logger           *slog.Logger
	now              func() time.Time
}

// NewAuthService creates an AuthService with the given repositories and auth ports.
func NewAuthService(
	userRepo domain.UserRepository,
	roleRepo domain.RoleRepository,
	verificationRepo domain.VerificationRepository,
	hasher domain.PasswordHasher,
	tokenIssuer domain.TokenIssuer,
	tokenExpiry time.Duration,
	verificationTTL time.Duration,
	emailService domain.EmailService,
	frontendURL string,
	logger *slog.Logger,
) domain.AuthService {
	if verificationTTL <= 0 {
		verificationTTL = defaultVerificationTTL
	}
	return &authService{
		userRepo:         userRepo,
		roleRepo:         roleRepo,
		verificationRepo: verificationRepo,
		hasher:           hasher,
		tokenIssuer:      tokenIssuer,
		tokenExpiry:      tokenExpiry,
		verificationTTL:  verificationTTL,
		emailService:     emailService,
		frontendURL:      strings.TrimRight(frontendURL, "/"),
		logger:           logger,
		now:              time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// SignUp creates an unverified account and emails it a verification code.
// The account is removed again when the email cannot be sent.
func (s *authService) SignUp(ctx context.Context, email, name, mobile, password, role string) (*domain.User, error) {
	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	roleCode := strings.TrimSpace(strings.ToLower(role))
	switch roleCode {
	case "":
		roleCode = defaultSignUpRole
	case domain.RoleOrganizer, domain.RoleUser:
	default:
		return nil, fmt.Errorf("%w: role must be %q or %q", domain.ErrInvalidInput, domain.RoleOrganizer, domain.RoleUser)
	}

	roleRecord, err := s.roleRepo.GetByCode(ctx, roleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get role %q: %w", roleCode, err)
	}
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := domain.NewUser(email, name, strings.TrimSpace(mobile), hash, salt, now, now)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.userRepo.AssignRole(ctx, user.ID, roleRecord.ID); err != nil {
		s.discardUser(ctx, user.ID)
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}
	if err := s.sendVerification(ctx, user); err != nil {
		s.discardUser(ctx, user.ID)
		if errors.Is(err, domain.ErrNotificationFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNotificationFailure, err)
	}
	return user, nil
}

func (s *authService) discardUser(ctx context.Context, userID string) {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to remove incomplete sign-up", "user_id", userID, "error", err)
	}
}

func (s *authService) sendVerification(ctx context.Context, user *domain.User) error {
	code, err := generateVerificationCode(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	if err := s.verificationRepo.Create(ctx, user.Email, hashVerificationCode(code), s.now().Add(s.verificationTTL)); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	q := url.Values{"email": {user.Email}, "code": {code}}
	return s.emailService.SendVerification(ctx, &domain.VerificationEmailData{
		Email:            user.Email,
		Name:             user.Name,
		Code:             code,
		VerifyURL:        s.frontendURL + "/verify?" + q.Encode(),
		ExpiresInMinutes: int(s.verificationTTL / time.Minute),
	})
}

func (s *authService) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if !emailRegexp.MatchString(email) || !verifyCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: invalid or expired code", domain.ErrInvalidInput)
	}
	consumed, err := s.verificationRepo.Consume(ctx, email, hashVerificationCode(code))
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !consumed {
		return fmt.Errorf("%w: invalid or expired code", domain.ErrInvalidInput)
	}
	if err := s.userRepo.MarkVerified(ctx, email); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.Salt, password); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.Verified {
		return "", nil, domain.ErrEmailNotVerified
	}

	roles, err := s.roleRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load roles: %w", err)
	}
	roleCodes := make([]string, len(roles))
	for i, r := range roles {
		roleCodes[i] = r.Code
	}
	token, err := s.tokenIssuer.Issue(user.ID, user.Email, roleCodes, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

func generateVerificationCode(digits int) (string, error) {
	const digitspace = "0123456789"
	b := make([]byte, digits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = digitspace[int(b[i])%len(digitspace)]
	}
	return string(b), nil
}

func hashVerificationCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
