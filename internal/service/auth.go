package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"
	"treematch/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthConfig carries the secrets the auth service needs.
type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	SetupPassword string
}

// RegisterInput is the signup payload. Every account except the root needs a referral code.
type RegisterInput struct {
	Email            string `json:"email" validate:"required,email,max=254"`
	Password         string `json:"password" validate:"required,password"`
	FullName         string `json:"full_name" validate:"required,min=2,max=100"`
	ReferralCode     string `json:"referral_code" validate:"required,max=32"`
	Phone            string `json:"phone" validate:"omitempty,max=30"`
	Address          string `json:"address" validate:"omitempty,max=255"`
	Age              *int   `json:"age" validate:"omitempty,gte=18,lte=120"`
	Gender           string `json:"gender" validate:"omitempty,oneof=male female other"`
	Location         string `json:"location" validate:"omitempty,max=100"`
	Height           *int   `json:"height" validate:"omitempty,gte=100,lte=250"`
	EmploymentStatus string `json:"employment_status" validate:"omitempty,max=100"`
	Interests        string `json:"interests" validate:"omitempty,max=1000"`
	Bio              string `json:"bio" validate:"omitempty,max=1000"`
	SocialLink       string `json:"social_link" validate:"omitempty,url,max=500"`
}

// RootInput bootstraps the single root account.
type RootInput struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required,password"`
	FullName      string `json:"full_name" validate:"required,min=2,max=100"`
	SetupPassword string `json:"setup_password" validate:"required"`
}

// ProfileUpdate holds the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName         *string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Phone            *string `json:"phone" validate:"omitempty,max=30"`
	Address          *string `json:"address" validate:"omitempty,max=255"`
	Age              *int    `json:"age" validate:"omitempty,gte=18,lte=120"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Location         *string `json:"location" validate:"omitempty,max=100"`
	Height           *int    `json:"height" validate:"omitempty,gte=100,lte=250"`
	EmploymentStatus *string `json:"employment_status" validate:"omitempty,max=100"`
	Interests        *string `json:"interests" validate:"omitempty,max=1000"`
	Bio              *string `json:"bio" validate:"omitempty,max=1000"`
	SocialLink       *string `json:"social_link" validate:"omitempty,url,max=500"`
	ProfileImage     *string `json:"profile_image" validate:"omitempty,url,max=500"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string                 `json:"token"`
	User  *models.PrivateProfile `json:"user"`
}

// ReferralCodeCheck reports whether a referral code can be used to sign up.
type ReferralCodeCheck struct {
	Valid        bool   `json:"valid"`
	ReferrerName string `json:"referrer_name,omitempty"`
}

// AuthService provides signup, login and own-profile operations.
type AuthService struct {
	store     *repository.Store
	vault     *secure.Vault
	people    profiles
	referrals *ReferralService
	cfg       AuthConfig
}

// NewAuthService returns a new AuthService.
func NewAuthService(store *repository.Store, vault *secure.Vault, referrals *ReferralService, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		vault:     vault,
		people:    profiles{vault: vault},
		referrals: referrals,
		cfg:       cfg,
	}
}

// Register creates a user and its referral edge in one transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = secure.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	if err := validation.Struct(in); err != nil {
		observability.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.newUser(in.Email, in.Password, in.FullName, in.Phone, in.Address)
	if err != nil {
		return nil, err
	}
	user.Age = in.Age
	user.Gender = in.Gender
	user.Location = in.Location
	user.Height = in.Height
	user.EmploymentStatus = in.EmploymentStatus
	user.Interests = in.Interests
	user.Bio = in.Bio
	user.SocialLink = in.SocialLink

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Users.GetByEmailFingerprint(ctx, user.EmailFingerprint)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.ErrEmailTaken
		}
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		_, err = s.referrals.Register(ctx, tx, in.ReferralCode, user.ID)
		return err
	})
	if err != nil {
		observability.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	observability.RegistrationsTotal.WithLabelValues("created").Inc()
	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))

	return s.issue(ctx, user)
}

// InitializeRoot creates the root account. It only succeeds on an empty user table
// and only with the configured setup password.
func (s *AuthService) InitializeRoot(ctx context.Context, in RootInput) (*AuthResult, error) {
	in.Email = secure.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if s.cfg.SetupPassword == "" ||
		subtle.ConstantTimeCompare([]byte(in.SetupPassword), []byte(s.cfg.SetupPassword)) != 1 {
		return nil, models.NewUnauthorizedError("Invalid setup password")
	}

	user, err := s.newUser(in.Email, in.Password, in.FullName, "", "")
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		count, err := tx.Users.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return models.ErrAlreadyInitialized
		}
		return tx.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "root user initialized", slog.Uint64("user_id", uint64(user.ID)))

	return s.issue(ctx, user)
}

func (s *AuthService) newUser(email, password, fullName, phone, address string) (*models.User, error) {
	email = secure.NormalizeEmail(email)
	hash, err := secure.HashPassword(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	fields := map[string]string{"email": email, "name": fullName, "phone": phone, "address": address}
	enc := make(map[string]string, len(fields))
	for k, v := range fields {
		c, err := s.vault.Encrypt(v)
		if err != nil {
			return nil, models.NewInternalError(fmt.Errorf("encrypt %s: %w", k, err))
		}
		enc[k] = c
	}

	return &models.User{
		EmailFingerprint:  s.vault.Fingerprint(email),
		EmailEncrypted:    enc["email"],
		FullNameEncrypted: enc["name"],
		PhoneEncrypted:    enc["phone"],
		AddressEncrypted:  enc["address"],
		PasswordHash:      hash,
	}, nil
}

// Login checks credentials by email fingerprint and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.Users.GetByEmailFingerprint(ctx, s.vault.Fingerprint(secure.NormalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !secure.CheckPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}
	if user.IsSuspended {
		return nil, models.ErrSuspended
	}
	if err := s.store.Users.TouchLastActive(ctx, user.ID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to update last_active", slog.String("error", err.Error()))
	}
	return s.issue(ctx, user)
}

// ValidateReferralCode reports whether code belongs to an existing user.
func (s *AuthService) ValidateReferralCode(ctx context.Context, code string) (*ReferralCodeCheck, error) {
	referrer, err := s.referrals.ValidateCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return &ReferralCodeCheck{Valid: false}, nil
		}
		return nil, err
	}
	return &ReferralCodeCheck{Valid: true, ReferrerName: s.people.name(referrer)}, nil
}

// Me returns the caller's own profile with contact fields decrypted.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.PrivateProfile, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.private(ctx, user)
}

// UpdateProfile applies patch to the caller's profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, patch ProfileUpdate) (*models.PrivateProfile, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	encrypted := []struct {
		src *string
		dst *string
	}{
		{patch.FullName, &user.FullNameEncrypted},
		{patch.Phone, &user.PhoneEncrypted},
		{patch.Address, &user.AddressEncrypted},
	}
	for _, f := range encrypted {
		if f.src == nil {
			continue
		}
		c, err := s.vault.Encrypt(*f.src)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		*f.dst = c
	}

	if patch.Age != nil {
		user.Age = patch.Age
	}
	if patch.Height != nil {
		user.Height = patch.Height
	}
	plain := []struct {
		src *string
		dst *string
	}{
		{patch.Gender, &user.Gender},
		{patch.Location, &user.Location},
		{patch.EmploymentStatus, &user.EmploymentStatus},
		{patch.Interests, &user.Interests},
		{patch.Bio, &user.Bio},
		{patch.SocialLink, &user.SocialLink},
		{patch.ProfileImage, &user.ProfileImage},
	}
	for _, f := range plain {
		if f.src != nil {
			*f.dst = *f.src
		}
	}

	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.private(ctx, user)
}

func (s *AuthService) private(ctx context.Context, user *models.User) (*models.PrivateProfile, error) {
	edge, err := s.store.Referrals.GetByReferred(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	var referredBy *models.UserRef
	if edge != nil {
		parent, err := s.store.Users.GetByID(ctx, edge.ReferrerID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if parent != nil {
			ref := s.people.ref(parent)
			referredBy = &ref
		}
	}

	// Unreadable contact fields are shown empty rather than failing the whole profile.
	email, _ := s.vault.Decrypt(user.EmailEncrypted)
	phone, _ := s.vault.Decrypt(user.PhoneEncrypted)
	address, _ := s.vault.Decrypt(user.AddressEncrypted)

	return &models.PrivateProfile{
		ProfileCard: s.people.card(user, referredBy),
		Email:       email,
		Phone:       phone,
		Address:     address,
		IsSuspended: user.IsSuspended,
		IsRoot:      edge == nil,
	}, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	profile, err := s.private(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: profile}, nil
}

// IssueToken signs an HS256 JWT whose subject is userID.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": middleware.TokenIssuer,
		"aud": middleware.TokenIssuer,
		"exp": now.Add(s.cfg.TokenTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}
