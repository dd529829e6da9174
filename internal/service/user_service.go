package service

import (
	"context"
	"fmt"
	"strings"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"
	"go-pos-ledger/pkg/validator"

	"github.com/google/uuid"
)

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Name     string     `json:"name" validate:"required,max=50"`
	Phone    string     `json:"phone" validate:"max=20"`
	Role     model.Role `json:"role" validate:"required,oneof=admin manager cashier"`
}

type UpdateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password *string    `json:"password,omitempty" validate:"omitempty,min=6"`
	Name     string     `json:"name" validate:"required,max=50"`
	Phone    string     `json:"phone" validate:"max=20"`
	Role     model.Role `json:"role" validate:"required,oneof=admin manager cashier"`
	IsActive *bool      `json:"is_active"`
}

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest, actor event.Actor) (*model.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor event.Actor) (*model.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID, actor event.Actor) error
	ListUsers(ctx context.Context, f repository.UserFilter) ([]model.UserResponse, int64, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	events   event.Publisher
}

func NewUserService(userRepo repository.UserRepository, events event.Publisher) UserService {
	return &userService{userRepo: userRepo, events: events}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest, actor event.Actor) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Role:     req.Role,
		IsActive: true,
	}
	user.CreatedBy = actor.ID.String()
	user.UpdatedBy = actor.ID.String()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "failed to hash password")
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "email already exists")
		}
		return nil, err
	}

	s.publish("create", user, actor)
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor event.Actor) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Email != user.Email {
		if err := s.ensureEmailFree(ctx, req.Email, user.ID); err != nil {
			return nil, err
		}
	}
	stillAdmin := req.Role == model.RoleAdmin && (req.IsActive == nil || *req.IsActive)
	if user.Role == model.RoleAdmin && user.IsActive && !stillAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	user.Email = req.Email
	user.Name = req.Name
	user.Phone = req.Phone
	user.Role = req.Role
	user.UpdatedBy = actor.ID.String()
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, err, "failed to hash password")
		}
		// Force re-login everywhere after a reset.
		user.TokenVersion = uuid.New().String()
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "email already exists")
		}
		return nil, err
	}

	s.publish("update", user, actor)
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID, actor event.Actor) error {
	if userID == actor.ID {
		return apperror.Validation("you cannot delete your own account")
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == model.RoleAdmin && user.IsActive {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("user", userID)
		}
		return err
	}
	s.publish("delete", user, actor)
	return nil
}

func (s *userService) ListUsers(ctx context.Context, f repository.UserFilter) ([]model.UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]model.UserResponse, len(users))
	for i := range users {
		resp[i] = users[i].ToResponse()
	}
	return resp, total, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) findUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := s.userRepo.CountActiveByRole(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperror.New(apperror.KindConflict, "cannot remove the last admin")
	}
	return nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string, except uuid.UUID) error {
	taken, err := s.userRepo.EmailTaken(ctx, email, except)
	if err != nil {
		return err
	}
	if taken {
		return apperror.New(apperror.KindConflict, "email already exists")
	}
	return nil
}

func (s *userService) publish(action string, u *model.User, actor event.Actor) {
	s.events.Publish(event.Event{
		Topic:       event.TopicUserChanged,
		Action:      action,
		Entity:      "user",
		EntityID:    u.ID.String(),
		Description: fmt.Sprintf("%s %sd user %s", actor.Name, action, u.Email),
		Actor:       actor,
		Data: map[string]interface{}{
			"email": u.Email,
			"role":  u.Role,
		},
	})
}
