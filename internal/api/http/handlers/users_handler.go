package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/user-admin-service/internal/api/dto"
	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/flash"
	"github.com/spec-kit/user-admin-service/internal/messages"
	"github.com/spec-kit/user-admin-service/internal/service"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util"
)

// UsersHandler exposes the user-management endpoints.
type UsersHandler struct {
	service *service.UserService
	flashes flash.Store
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService, flashes flash.Store) *UsersHandler {
	return &UsersHandler{service: userService, flashes: flashes}
}

// Index handles GET /api/users.
func (h *UsersHandler) Index(c *fiber.Ctx) error {
	page, err := h.service.ListUsers(c.UserContext(), parseListQuery(c))
	if err != nil {
		return err
	}

	items := make([]dto.UserResponse, 0, len(page.Users))
	for i := range page.Users {
		items = append(items, dto.NewUserResponse(&page.Users[i]))
	}

	resp := dto.UserListResponse{
		Data:         items,
		TotalRecords: page.TotalRecords,
		PerPage:      page.PerPage,
		Page:         page.Page,
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		if msg, err := h.flashes.Take(c.UserContext(), principal.ID); err == nil {
			resp.Flash = msg
		}
	}
	return c.JSON(resp)
}

// Store handles POST /api/users.
func (h *UsersHandler) Store(c *fiber.Ctx) error {
	var req dto.UserRequest
	if err := c.BodyParser(&req); err != nil {
		return malformedBody()
	}

	principal, _ := auth.PrincipalFromContext(c)
	user, err := h.service.CreateUser(c.UserContext(), principal, service.UserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}

	data := dto.NewUserResponse(user)
	return c.Status(http.StatusCreated).JSON(dto.MutationResponse{
		Data:  &data,
		Flash: h.emitFlash(c, messages.UserCreated),
	})
}

// Update handles PUT/PATCH /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req dto.UserRequest
	if err := c.BodyParser(&req); err != nil {
		return malformedBody()
	}

	principal, _ := auth.PrincipalFromContext(c)
	user, err := h.service.UpdateUser(c.UserContext(), principal, id, service.UserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}

	data := dto.NewUserResponse(user)
	return c.JSON(dto.MutationResponse{
		Data:  &data,
		Flash: h.emitFlash(c, messages.UserUpdated),
	})
}

// Destroy handles DELETE /api/users/:id.
func (h *UsersHandler) Destroy(c *fiber.Ctx) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	principal, _ := auth.PrincipalFromContext(c)
	if err := h.service.DeleteUser(c.UserContext(), principal, id); err != nil {
		return err
	}

	return c.JSON(dto.MutationResponse{
		Flash: h.emitFlash(c, messages.UserDeleted),
	})
}

// BulkDestroy handles POST /api/users/bulk-delete.
func (h *UsersHandler) BulkDestroy(c *fiber.Ctx) error {
	var req dto.BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return malformedBody()
	}

	principal, _ := auth.PrincipalFromContext(c)
	if err := h.service.BulkDeleteUsers(c.UserContext(), principal, req.IDs); err != nil {
		return err
	}

	return c.JSON(dto.MutationResponse{
		Flash: h.emitFlash(c, messages.UsersBulkDeleted),
	})
}

// emitFlash stores the one-time message for the caller and returns it for
// immediate display.
func (h *UsersHandler) emitFlash(c *fiber.Ctx, key messages.Key) flash.Message {
	msg := flash.Success(messages.Get(key))
	if principal, ok := auth.PrincipalFromContext(c); ok {
		_ = h.flashes.Put(c.UserContext(), principal.ID, msg)
	}
	return msg
}

// malformedBody reports an unreadable request body under the same envelope as
// field validation, keyed "_" like other non-field errors.
func malformedBody() error {
	return apperrors.NewValidationError("invalid payload", map[string][]string{
		"_": {"The request body is malformed."},
	})
}

// userIDParam validates the path identifier. Anything that cannot reference
// an existing row maps to not-found, matching route-binding semantics.
func userIDParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return id, nil
}

func parseListQuery(c *fiber.Ctx) service.ListUsersInput {
	in := service.ListUsersInput{
		Search:    c.Query("search"),
		SortField: c.Query("sortField"),
		Page:      parseInt(c.Query("page"), 1),
	}
	// perPage outside the allowed set resolves to the default downstream;
	// non-numeric input degrades the same way.
	if raw := c.Query("perPage"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			in.PerPage = parsed
		}
	}
	// sortOrder is only meaningful when present: 1 ascending, anything else
	// (including non-numeric) descending.
	if raw := c.Query("sortOrder"); raw != "" {
		order := 0
		if parsed, err := strconv.Atoi(raw); err == nil {
			order = parsed
		}
		in.SortOrder = &order
	}
	return in
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
