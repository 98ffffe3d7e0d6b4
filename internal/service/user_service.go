package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/messages"
	"github.com/spec-kit/user-admin-service/internal/repository"
	"github.com/spec-kit/user-admin-service/internal/validation"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util"
)

// allowedPageSizes is the closed set of page sizes; anything else silently
// falls back to the default.
var allowedPageSizes = map[int]struct{}{10: {}, 20: {}, 50: {}}

const defaultPageSize = 10

// sortColumns maps client sort fields to sortable columns. Any field outside
// this allow-list is ignored and the listing keeps its default order.
var sortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

// UserInput carries the mutable attributes of a user. The credential is not
// part of this surface.
type UserInput struct {
	Name  string      `json:"name" validate:"required,min=2,max=200"`
	Email string      `json:"email" validate:"required,email"`
	Role  domain.Role `json:"role" validate:"required,oneof=user admin"`
}

// ListUsersInput carries raw, untrusted listing parameters.
type ListUsersInput struct {
	Search    string
	SortField string
	SortOrder *int
	PerPage   int
	Page      int
}

// UserPage is one page of users plus pagination metadata.
type UserPage struct {
	Users        []domain.User
	TotalRecords int64
	PerPage      int
	Page         int
}

// UserService implements the user-management operations.
type UserService struct {
	users      repository.UserRepository
	validator  *validation.Validator
	dispatcher events.Dispatcher
	bcryptCost int
}

// UserDependencies encapsulates requirements for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	BcryptCost int
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		validator:  validation.New(),
		dispatcher: deps.Dispatcher,
		bcryptCost: deps.BcryptCost,
	}
}

// ResolvePageSize coerces the requested page size to the allowed set.
// Malformed input degrades to the default rather than failing the request.
func ResolvePageSize(perPage int) int {
	if _, ok := allowedPageSizes[perPage]; ok {
		return perPage
	}
	return defaultPageSize
}

// ResolveSort maps the requested sort onto an allow-listed column. Sorting
// applies only when both field and order are supplied; order 1 means
// ascending, any other value descending. Unknown fields are ignored.
func ResolveSort(field string, order *int) (column string, asc bool) {
	if field == "" || order == nil {
		return "", false
	}
	column, ok := sortColumns[field]
	if !ok {
		return "", false
	}
	return column, *order == 1
}

// ListUsers returns a filtered, sorted, paginated page of users. Read-only.
func (s *UserService) ListUsers(ctx context.Context, in ListUsersInput) (*UserPage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	perPage := ResolvePageSize(in.PerPage)
	column, asc := ResolveSort(in.SortField, in.SortOrder)

	users, total, err := s.users.List(ctx, repository.UserFilter{
		Search:     in.Search,
		SortColumn: column,
		SortAsc:    asc,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &UserPage{
		Users:        users,
		TotalRecords: total,
		PerPage:      perPage,
		Page:         page,
	}, nil
}

// CreateUser validates and persists a new user. The initial credential is a
// randomly generated secret; account holders obtain a real one through a
// reset flow, never a shared default.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, in UserInput) (*domain.User, error) {
	fields := s.validator.Struct(in)
	if err := s.checkEmailUnique(ctx, in.Email, "", fields); err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, apperrors.NewValidationError("validation failed", fields)
	}

	hash, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.mapWriteError(err)
	}

	s.publish(ctx, events.EventUserCreated, actor, events.UserChangedPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	return user, nil
}

// UpdateUser applies name/email/role changes in place. The uniqueness check
// excludes the target's own row, so re-submitting the current email is a
// valid no-op.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, id string, in UserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	fields := s.validator.Struct(in)
	if err := s.checkEmailUnique(ctx, in.Email, user.ID, fields); err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, apperrors.NewValidationError("validation failed", fields)
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Role = in.Role
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, s.mapWriteError(err)
	}

	s.publish(ctx, events.EventUserUpdated, actor, events.UserChangedPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	return user, nil
}

// DeleteUser permanently removes a single user.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventUserDeleted, actor, events.UserChangedPayload{UserID: id})
	return nil
}

// BulkDeleteUsers removes the given set as one logical operation. Existence
// validation is all-or-nothing: a single unknown id rejects the whole batch
// before any deletion begins.
func (s *UserService) BulkDeleteUsers(ctx context.Context, actor *domain.User, ids []string) error {
	fields := validation.FieldErrors{}
	if len(ids) == 0 {
		fields.Add("ids", messages.Get(messages.IDsRequired))
		return apperrors.NewValidationError("validation failed", fields)
	}

	for i, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			fields.Add(fmt.Sprintf("ids.%d", i), messages.Get(messages.UserMissing))
		}
	}
	if !fields.Empty() {
		return apperrors.NewValidationError("validation failed", fields)
	}

	missing, err := s.users.MissingIDs(ctx, ids)
	if err != nil {
		return apperrors.MapError(err)
	}
	if len(missing) > 0 {
		absent := make(map[string]struct{}, len(missing))
		for _, id := range missing {
			absent[id] = struct{}{}
		}
		for i, id := range ids {
			if _, ok := absent[id]; ok {
				fields.Add(fmt.Sprintf("ids.%d", i), messages.Get(messages.UserMissing))
			}
		}
		return apperrors.NewValidationError("validation failed", fields)
	}

	// Duplicate ids reference the same existing row and are valid input;
	// collapse them so the row-count check in DeleteMany stays exact.
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if err := s.users.DeleteMany(ctx, unique); err != nil {
		if errors.Is(err, repository.ErrMissingUsers) {
			fields.Add("ids", messages.Get(messages.UserMissing))
			return apperrors.NewValidationError("validation failed", fields)
		}
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventUsersBulkDeleted, actor, events.UsersBulkDeletedPayload{UserIDs: unique})
	return nil
}

// EnsureAdmin creates the bootstrap admin account when none exists yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	count, err := s.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if email == "" || password == "" {
		return false, errors.New("no admin exists and ADMIN_EMAIL/ADMIN_PASSWORD are unset")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	admin := &domain.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, err
	}

	s.publish(ctx, events.EventUserCreated, nil, events.UserChangedPayload{
		UserID: admin.ID,
		Email:  admin.Email,
		Role:   admin.Role,
	})
	return true, nil
}

// checkEmailUnique records a field error when the email is already held by
// another row. This pre-check is a UX convenience; the database constraint
// remains the source of truth (see mapWriteError).
func (s *UserService) checkEmailUnique(ctx context.Context, email, excludeID string, fields validation.FieldErrors) error {
	if email == "" || len(fields["email"]) > 0 {
		return nil
	}
	taken, err := s.users.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if taken {
		fields.Add("email", messages.Get(messages.EmailTaken))
	}
	return nil
}

// mapWriteError turns a storage-level uniqueness conflict into the same
// recoverable validation error the pre-check produces.
func (s *UserService) mapWriteError(err error) error {
	if errors.Is(err, repository.ErrEmailTaken) {
		fields := validation.FieldErrors{}
		fields.Add("email", messages.Get(messages.EmailTaken))
		return apperrors.NewValidationError("validation failed", fields)
	}
	return apperrors.MapError(err)
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, actor *domain.User, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if actor != nil {
		event.Actor = events.Actor{ActorID: actor.ID, Role: actor.Role}
	}
	_ = s.dispatcher.Publish(ctx, event)
}
