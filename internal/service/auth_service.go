package service

import (
	"context"
	"fmt"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"
	"go-pos-ledger/pkg/jwt"
	"go-pos-ledger/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = apperror.New(apperror.KindUnauthorized, "invalid email or password")
	ErrUserInactive       = apperror.New(apperror.KindUnauthorized, "user account is inactive")
	ErrSessionReplaced    = apperror.New(apperror.KindUnauthorized, "session expired (logged in on another device)")
	ErrWrongPassword      = apperror.New(apperror.KindValidation, "current password is incorrect")
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      model.UserResponse `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, req *LoginRequest, actor event.Actor) (*LoginResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error)
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	events   event.Publisher
	ttl      time.Duration
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, ttl time.Duration, events event.Publisher) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		events:   events,
		ttl:      ttl,
	}
}

func (s *authService) Login(ctx context.Context, req *LoginRequest, actor event.Actor) (*LoginResponse, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	// Single session: a new login invalidates every older token.
	now := time.Now()
	user.TokenVersion = uuid.New().String()
	user.LastLoginAt = &now
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "failed to update session")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Name, string(user.Role), user.TokenVersion)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "failed to generate token")
	}

	actor.ID = user.ID
	actor.Name = user.Name
	actor.Email = user.Email
	s.events.Publish(event.Event{
		Topic:       event.TopicAuth,
		Action:      "login",
		Entity:      "user",
		EntityID:    user.ID.String(),
		Description: fmt.Sprintf("%s logged in", user.Name),
		Actor:       actor,
	})

	return &LoginResponse{
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		User:      user.ToResponse(),
	}, nil
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.RotateTokenVersion(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("user", userID)
		}
		return err
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := validator.Check(req); err != nil {
		return err
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(req.OldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperror.Wrap(apperror.KindInternal, err, "failed to hash new password")
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, user.Password)
}

// Authenticate validates the bearer token and the session it belongs to.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, err, "invalid or expired token")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.New(apperror.KindUnauthorized, "user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return user, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *authService) findUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, err
	}
	return user, nil
}
