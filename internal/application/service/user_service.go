package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

// UserInput carries the writable fields of a user
type UserInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"manager_id"`
}

// UserService manages the organisation directory
type UserService interface {
	Create(ctx context.Context, input UserInput) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Update(ctx context.Context, id int64, input UserInput) (*entity.User, error)
	Delete(ctx context.Context, id int64) error
	// EnsureAdmin creates an admin when none exists yet. It reports whether
	// a user was created.
	EnsureAdmin(ctx context.Context, name, email string) (*entity.User, bool, error)
}

type userServiceImpl struct {
	users     port.UserRepository
	steps     port.ApprovalStepRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewUserService creates a new UserService
func NewUserService(
	users port.UserRepository,
	steps port.ApprovalStepRepository,
	txManager port.TransactionManager,
	logger Logger,
) UserService {
	return &userServiceImpl{
		users:     users,
		steps:     steps,
		txManager: txManager,
		logger:    orNop(logger),
	}
}

func (in *UserInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return entity.NewValidationError("name", "is required")
	}

	in.Email = utils.NormalizeEmail(in.Email)
	if err := utils.ValidateEmail(in.Email); err != nil {
		return entity.NewValidationError("email", "%q is not a valid address", in.Email)
	}

	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = entity.RoleEmployee
	}
	if !entity.IsValidRole(in.Role) {
		return entity.NewValidationError("role", "%q is not one of employee, manager, admin", in.Role)
	}

	if in.ManagerID != nil && *in.ManagerID == 0 {
		in.ManagerID = nil
	}
	return nil
}

// Create adds a user
func (s *userServiceImpl) Create(ctx context.Context, input UserInput) (*entity.User, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:      input.Name,
		Email:     input.Email,
		Role:      input.Role,
		ManagerID: input.ManagerID,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkEmailFree(txCtx, input.Email, 0); err != nil {
			return err
		}
		if err := s.checkManagerExists(txCtx, input.ManagerID); err != nil {
			return err
		}
		return s.users.Create(txCtx, user)
	})
	if err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", input.Email)
		return nil, err
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Get retrieves a user by ID
func (s *userServiceImpl) Get(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", entity.ErrUserNotFound, id)
	}
	return user, nil
}

// List returns every user
func (s *userServiceImpl) List(ctx context.Context) ([]*entity.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

// Update replaces the writable fields of a user
func (s *userServiceImpl) Update(ctx context.Context, id int64, input UserInput) (*entity.User, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	var user *entity.User
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.Get(txCtx, id)
		if err != nil {
			return err
		}

		if err := s.checkEmailFree(txCtx, input.Email, id); err != nil {
			return err
		}
		if err := s.checkManagerExists(txCtx, input.ManagerID); err != nil {
			return err
		}
		if err := s.checkNoCycle(txCtx, id, input.ManagerID); err != nil {
			return err
		}

		user.Name = input.Name
		user.Email = input.Email
		user.Role = input.Role
		user.ManagerID = input.ManagerID
		return s.users.Update(txCtx, user)
	})
	if err != nil {
		s.logger.Error("Failed to update user", "error", err, "user_id", id)
		return nil, err
	}

	s.logger.Info("User updated", "user_id", id)
	return user, nil
}

// Delete removes a user who neither manages anyone nor has steps to decide
func (s *userServiceImpl) Delete(ctx context.Context, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.Get(txCtx, id); err != nil {
			return err
		}

		reports, err := s.users.ListByManagerID(txCtx, id)
		if err != nil {
			return err
		}
		if len(reports) > 0 {
			return fmt.Errorf("%w: user %d still manages %d users", workflow.ErrInvalidState, id, len(reports))
		}

		pending, err := s.steps.CountPendingByApprover(txCtx, id)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: user %d has %d approvals to decide", workflow.ErrInvalidState, id, pending)
		}

		return s.users.Delete(txCtx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete user", "error", err, "user_id", id)
		return err
	}

	s.logger.Info("User deleted", "user_id", id)
	return nil
}

// EnsureAdmin bootstraps the first admin account
func (s *userServiceImpl) EnsureAdmin(ctx context.Context, name, email string) (*entity.User, bool, error) {
	admins, err := s.users.ListByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	if len(admins) > 0 {
		return admins[0], false, nil
	}

	admin, err := s.Create(ctx, UserInput{Name: name, Email: email, Role: entity.RoleAdmin})
	if err != nil {
		return nil, false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return admin, true, nil
}

func (s *userServiceImpl) checkEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return entity.NewValidationError("email", "%s is already registered", email)
	}
	return nil
}

func (s *userServiceImpl) checkManagerExists(ctx context.Context, managerID *int64) error {
	if managerID == nil {
		return nil
	}
	manager, err := s.users.GetByID(ctx, *managerID)
	if err != nil {
		return err
	}
	if manager == nil {
		return entity.NewValidationError("manager_id", "user %d does not exist", *managerID)
	}
	return nil
}

// checkNoCycle walks the management chain above managerID and fails if it
// reaches userID
func (s *userServiceImpl) checkNoCycle(ctx context.Context, userID int64, managerID *int64) error {
	seen := make(map[int64]bool)
	for current := managerID; current != nil; {
		if *current == userID {
			return entity.NewValidationError("manager_id", "user %d cannot report to %d: reporting cycle", userID, *managerID)
		}
		if seen[*current] {
			return nil
		}
		seen[*current] = true

		u, err := s.users.GetByID(ctx, *current)
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		current = u.ManagerID
	}
	return nil
}
