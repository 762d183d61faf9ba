package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
	"github.com/zjoart/varlixo/pkg/utils"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid email or password")
	ErrInvalidToken       = apperr.New(apperr.KindUnauthorized, "invalid token")
	ErrUnknownReferral    = apperr.Validation("referral code is not valid")
)

type Wallets interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
}

type RegisterInput struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Country      string `json:"country"`
	ReferralCode string `json:"referral_code"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *user.User `json:"user"`
}

type Service struct {
	users    user.Repository
	wallets  Wallets
	tx       database.Transactor
	notifier notification.Notifier
	secret   []byte
	ttl      time.Duration
}

func NewService(users user.Repository, wallets Wallets, tx database.Transactor, notifier notification.Notifier, secret string, ttl time.Duration) *Service {
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{users: users, wallets: wallets, tx: tx, notifier: notifier, secret: []byte(secret), ttl: ttl}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (in *RegisterInput) validate() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = user.NormalizeEmail(in.Email)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	in.ReferralCode = strings.ToUpper(strings.TrimSpace(in.ReferralCode))

	if in.FullName == "" {
		return apperr.Validation("full name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.Validation("email is not valid")
	}
	if len(in.Password) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if in.Country != "" && len(in.Country) != 2 {
		return apperr.Validation("country must be an ISO 3166 alpha-2 code")
	}
	return nil
}

// Register creates the user and an empty wallet in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	usr := &user.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Country:      in.Country,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if in.ReferralCode != "" {
			referrer, err := s.users.FindByReferralCode(ctx, in.ReferralCode)
			if errors.Is(err, user.ErrUserNotFound) {
				return ErrUnknownReferral
			}
			if err != nil {
				return err
			}
			usr.ReferredBy = &referrer.ID
		}

		if err := s.users.CreateUser(ctx, usr); err != nil {
			return err
		}
		_, err := s.wallets.EnsureWallet(ctx, usr.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("User registered", logger.Fields{logger.UserIdKey: usr.ID.String(), "referred": usr.ReferredBy != nil})
	s.notifier.Notify(ctx, usr.ID, notification.TemplateWelcome, map[string]string{"code": usr.ReferralCode})

	return s.session(usr)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	usr, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(in.Password)); err != nil {
		logger.Warn("Failed login attempt", logger.Fields{logger.UserIdKey: usr.ID.String()})
		return nil, ErrInvalidCredentials
	}

	return s.session(usr)
}

func (s *Service) session(usr *user.User) (*Session, error) {
	token, expiresAt, err := s.IssueToken(*usr)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: usr}, nil
}

// IssueToken signs an HS256 token carrying the user id and role.
func (s *Service) IssueToken(usr user.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		utils.UserIDKey: usr.ID.String(),
		utils.RoleKey:   string(usr.Role),
		utils.ExpKey:    expiresAt.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies tokenString and returns the user id it carries.
func ParseToken(secret []byte, tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	raw, ok := claims[utils.UserIDKey].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Authenticate resolves a bearer token to its current user record.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	id, err := ParseToken(s.secret, token)
	if err != nil {
		return nil, err
	}

	usr, err := s.users.FindByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	return usr, err
}
