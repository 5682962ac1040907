package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lumen-backend/internal/application/ledger"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/pkg/validation"
)

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrEmailTaken            = errors.New("Email already registered")
	ErrWeakPassword          = errors.New("Password too weak")
	ErrInvalidFullname       = errors.New("Invalid fullname")
)

// Service handles registration and login. Registration is the moment an
// account ledger comes into existence, funded with the rebirth amount.
type Service struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

// RegisterInput for the register request body.
type RegisterInput struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput for the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates the identity and its ledger document in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput, now time.Time) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, ErrInvalidEmail
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrWeakPassword
	}
	if !validation.IsValidFullname(in.Fullname) {
		return nil, ErrInvalidFullname
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		Fullname:     in.Fullname,
		Email:        in.Email,
		PasswordHash: string(hash),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		_, err := s.Ledger.Open(tx, user.UserID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login finds the user by email and verifies the password.
func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &u, nil
}

// SessionUserShape is the object returned by /me.
type SessionUserShape struct {
	AccountID string `json:"account_id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
}

// VerifyUser validates the session user map and returns the /me shape.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	accountID, _ := m["account_id"].(string)
	if accountID == "" {
		return nil, ErrNotAuthenticated
	}
	return &SessionUserShape{
		AccountID: accountID,
		Fullname:  str(m["fullname"]),
		Email:     str(m["email"]),
	}, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
