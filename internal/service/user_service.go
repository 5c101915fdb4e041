package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for request validation
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"required"`
	RigNumber int    `json:"rig_number"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// UserService manages principals: the accounts that initiate reports and
// act in approver roles.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

var accountRoles = map[string]bool{
	"admin":              true,
	model.RoleToolPusher: true,
	model.RoleDS:         true,
	model.RoleOSE:        true,
	model.RolePME:        true,
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	if !accountRoles[req.Role] {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, req.Role)
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", model.ErrValidation)
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", model.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		Role:      req.Role,
		RigNumber: req.RigNumber,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", model.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", model.ErrUnauthorized)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"rig":  user.RigNumber,
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &TokenResponse{Token: signed}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", model.ErrValidation)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", model.ErrNotFound, id)
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, page, limit)
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, user.ID)
}
