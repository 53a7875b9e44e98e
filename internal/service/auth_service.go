package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users repository.UserStore
	cost  int
	// compared against when the username does not exist, so both paths cost a hash
	dummyHash []byte
}

// NewAuthService uses bcrypt.DefaultCost when cost is 0.
func NewAuthService(users repository.UserStore, cost int) *AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &AuthService{users: users, cost: cost, dummyHash: dummy}
}

func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	return s.create(ctx, reg, false)
}

// CreateAdmin registers a user allowed to ship orders and manage stock.
func (s *AuthService) CreateAdmin(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	return s.create(ctx, reg, true)
}

func (s *AuthService) create(ctx context.Context, reg domain.Registration, admin bool) (*domain.User, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.users.UsernameExists(ctx, reg.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}
	taken, err = s.users.EmailExists(ctx, reg.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Phone:        reg.Phone,
		Address:      reg.Address,
		IsAdmin:      admin,
	}
	// the unique indexes still catch a concurrent registration of the same name
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username, "admin", admin)
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "login failed", "username", u.Username)
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.users.UsernameExists(ctx, strings.TrimSpace(username))
	return !taken, err
}

func (s *AuthService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.users.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)))
	return !taken, err
}
