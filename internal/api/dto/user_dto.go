package dto

import (
	"time"

	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/flash"
)

// UserRequest payload for create/update. The credential is never part of
// this surface.
type UserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// UserResponse is the outward user shape. The hashed credential stays out.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UserListResponse is the index payload: one page plus pagination metadata
// and any pending one-time flash for the caller.
type UserListResponse struct {
	Data         []UserResponse `json:"data"`
	TotalRecords int64          `json:"totalRecords"`
	PerPage      int            `json:"perPage"`
	Page         int            `json:"page"`
	Flash        *flash.Message `json:"flash,omitempty"`
}

// MutationResponse is the uniform success shape of all four mutations.
type MutationResponse struct {
	Data  *UserResponse `json:"data,omitempty"`
	Flash flash.Message `json:"flash"`
}

// BulkDeleteRequest payload.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// NewUserResponse maps the domain entity to its outward shape.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
