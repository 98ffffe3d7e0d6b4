package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/repository"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util"
)

// stubUserRepo emulates the Postgres repository in memory, applying the same
// filter semantics the SQL would.
type stubUserRepo struct {
	users      []domain.User
	lastFilter repository.UserFilter
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{}
}

func (r *stubUserRepo) seed(name, email string, role domain.Role) *domain.User {
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "seeded-hash",
		Role:         role,
		CreatedAt:    time.Now().Add(-time.Duration(len(r.users)) * time.Minute),
		UpdatedAt:    time.Now(),
	}
	r.users = append(r.users, user)
	return &user
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users = append(r.users, *user)
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	for _, existing := range r.users {
		if existing.ID != user.ID && existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	for i := range r.users {
		if r.users[i].ID == user.ID {
			user.UpdatedAt = time.Now()
			r.users[i] = *user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for i := range r.users {
		if r.users[i].ID == id {
			clone := r.users[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for i := range r.users {
		if r.users[i].Email == email {
			clone := r.users[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int64, error) {
	r.lastFilter = filter

	matched := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		if filter.Search != "" &&
			!strings.Contains(user.Name, filter.Search) &&
			!strings.Contains(user.Email, filter.Search) {
			continue
		}
		matched = append(matched, user)
	}

	if filter.SortColumn != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			var less bool
			switch filter.SortColumn {
			case "name":
				less = matched[i].Name < matched[j].Name
			case "email":
				less = matched[i].Email < matched[j].Email
			case "role":
				less = matched[i].Role < matched[j].Role
			case "created_at":
				less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
			}
			if filter.SortAsc {
				return less
			}
			return !less
		})
	}

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *stubUserRepo) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	for _, user := range r.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, err := r.GetByID(context.Background(), id); err != nil {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	var count int64
	for _, user := range r.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	for i := range r.users {
		if r.users[i].ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

// DeleteMany mirrors the SQL semantics: one set-based delete whose affected
// row count must equal len(ids), rolling back otherwise.
func (r *stubUserRepo) DeleteMany(_ context.Context, ids []string) error {
	target := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		target[id] = struct{}{}
	}

	remaining := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		if _, ok := target[user.ID]; !ok {
			remaining = append(remaining, user)
		}
	}
	if len(r.users)-len(remaining) != len(ids) {
		return repository.ErrMissingUsers
	}
	r.users = remaining
	return nil
}

func newTestService(repo repository.UserRepository) *UserService {
	return NewUserService(UserDependencies{
		UserRepo:   repo,
		BcryptCost: bcrypt.MinCost,
	})
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	return domainErr.Fields
}

func TestResolvePageSize(t *testing.T) {
	cases := map[int]int{
		10:  10,
		20:  20,
		50:  50,
		0:   10,
		-1:  10,
		15:  10,
		100: 10,
	}
	for input, want := range cases {
		assert.Equal(t, want, ResolvePageSize(input), "perPage=%d", input)
	}
}

func TestResolveSort(t *testing.T) {
	one, zero, seven := 1, 0, 7

	column, asc := ResolveSort("name", &one)
	assert.Equal(t, "name", column)
	assert.True(t, asc)

	column, asc = ResolveSort("email", &zero)
	assert.Equal(t, "email", column)
	assert.False(t, asc)

	column, asc = ResolveSort("created_at", &seven)
	assert.Equal(t, "created_at", column)
	assert.False(t, asc)

	column, _ = ResolveSort("name", nil)
	assert.Empty(t, column, "order missing disables sorting")

	column, _ = ResolveSort("", &one)
	assert.Empty(t, column, "field missing disables sorting")

	column, _ = ResolveSort("password_hash; DROP TABLE users", &one)
	assert.Empty(t, column, "unknown fields are ignored")
}

func TestListUsers_SearchMatchesNameOrEmail(t *testing.T) {
	repo := newStubUserRepo()
	repo.seed("Alice Smith", "alice@example.com", domain.RoleUser)
	repo.seed("Bob Jones", "bob@other.org", domain.RoleUser)
	repo.seed("Carol Smithson", "carol@example.com", domain.RoleAdmin)
	svc := newTestService(repo)

	page, err := svc.ListUsers(context.Background(), ListUsersInput{Search: "Smith"})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, int64(2), page.TotalRecords)

	page, err = svc.ListUsers(context.Background(), ListUsersInput{Search: "other.org"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "Bob Jones", page.Users[0].Name)
}

func TestListUsers_PageSizeCoercion(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)

	page, err := svc.ListUsers(context.Background(), ListUsersInput{PerPage: 15})
	require.NoError(t, err)
	assert.Equal(t, 10, page.PerPage)
	assert.Equal(t, 10, repo.lastFilter.Limit)

	page, err = svc.ListUsers(context.Background(), ListUsersInput{PerPage: 50, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 50, page.PerPage)
	assert.Equal(t, 100, repo.lastFilter.Offset)
}

func TestListUsers_SortOrder(t *testing.T) {
	repo := newStubUserRepo()
	repo.seed("Charlie", "c@example.com", domain.RoleUser)
	repo.seed("Alice", "a@example.com", domain.RoleUser)
	repo.seed("Bob", "b@example.com", domain.RoleUser)
	svc := newTestService(repo)

	asc := 1
	page, err := svc.ListUsers(context.Background(), ListUsersInput{SortField: "name", SortOrder: &asc})
	require.NoError(t, err)
	require.Len(t, page.Users, 3)
	assert.Equal(t, "Alice", page.Users[0].Name)
	assert.Equal(t, "Charlie", page.Users[2].Name)

	desc := 0
	page, err = svc.ListUsers(context.Background(), ListUsersInput{SortField: "name", SortOrder: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Charlie", page.Users[0].Name)

	// No sort parameters: insertion order is preserved.
	page, err = svc.ListUsers(context.Background(), ListUsersInput{})
	require.NoError(t, err)
	assert.Equal(t, "Charlie", page.Users[0].Name)
	assert.Equal(t, "Bob", page.Users[2].Name)
	assert.Empty(t, repo.lastFilter.SortColumn)
}

func TestCreateUser_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)

	user, err := svc.CreateUser(context.Background(), nil, UserInput{
		Name:  "New Person",
		Email: "new@example.com",
		Role:  domain.RoleUser,
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, domain.RoleUser, user.Role)
	require.Len(t, repo.users, 1)

	// The initial credential is generated, never a fixed default.
	assert.NotEmpty(t, user.PasswordHash)
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password")))

	second, err := svc.CreateUser(context.Background(), nil, UserInput{
		Name:  "Other Person",
		Email: "other@example.com",
		Role:  domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.NotEqual(t, user.PasswordHash, second.PasswordHash)
}

func TestCreateUser_InvalidInput(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)

	_, err := svc.CreateUser(context.Background(), nil, UserInput{
		Name:  "x",
		Email: "not-an-email",
		Role:  "owner",
	})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "role")
	assert.Empty(t, repo.users, "no record may be created on validation failure")
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	repo.seed("Existing", "taken@example.com", domain.RoleUser)
	svc := newTestService(repo)

	_, err := svc.CreateUser(context.Background(), nil, UserInput{
		Name:  "Impostor",
		Email: "taken@example.com",
		Role:  domain.RoleUser,
	})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "email")
	assert.Len(t, repo.users, 1)
}

func TestUpdateUser_SelfEmailAllowed(t *testing.T) {
	repo := newStubUserRepo()
	first := repo.seed("First", "a@x.com", domain.RoleUser)
	repo.seed("Second", "b@x.com", domain.RoleUser)
	svc := newTestService(repo)

	// Re-submitting the current email is a valid no-op change.
	updated, err := svc.UpdateUser(context.Background(), nil, first.ID, UserInput{
		Name:  "First Renamed",
		Email: "a@x.com",
		Role:  domain.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "First Renamed", updated.Name)
	assert.Equal(t, first.ID, updated.ID)

	// Taking another user's email is rejected.
	_, err = svc.UpdateUser(context.Background(), nil, first.ID, UserInput{
		Name:  "First",
		Email: "b@x.com",
		Role:  domain.RoleUser,
	})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "email")
}

func TestUpdateUser_CredentialUntouched(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Person", "person@example.com", domain.RoleUser)
	svc := newTestService(repo)

	updated, err := svc.UpdateUser(context.Background(), nil, user.ID, UserInput{
		Name:  "Person Renamed",
		Email: "renamed@example.com",
		Role:  domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "seeded-hash", updated.PasswordHash)
}

func TestUpdateUser_NotFound(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)

	_, err := svc.UpdateUser(context.Background(), nil, uuid.NewString(), UserInput{
		Name:  "Ghost",
		Email: "ghost@example.com",
		Role:  domain.RoleUser,
	})
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestDeleteUser(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Doomed", "doomed@example.com", domain.RoleUser)
	svc := newTestService(repo)

	require.NoError(t, svc.DeleteUser(context.Background(), nil, user.ID))
	assert.Empty(t, repo.users)

	err := svc.DeleteUser(context.Background(), nil, uuid.NewString())
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestBulkDeleteUsers_AllOrNothing(t *testing.T) {
	repo := newStubUserRepo()
	ids := make([]string, 0, 5)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, repo.seed(name, strings.ToLower(name)+"@example.com", domain.RoleUser).ID)
	}
	svc := newTestService(repo)

	// One unknown id rejects the whole batch before anything is deleted.
	err := svc.BulkDeleteUsers(context.Background(), nil, append(append([]string{}, ids...), uuid.NewString()))
	fields := validationFields(t, err)
	assert.Contains(t, fields, "ids.5")
	assert.Len(t, repo.users, 5, "no partial deletion")

	// A fully valid batch deletes exactly the given set.
	require.NoError(t, svc.BulkDeleteUsers(context.Background(), nil, ids))
	assert.Empty(t, repo.users)
}

func TestBulkDeleteUsers_DuplicateIDs(t *testing.T) {
	repo := newStubUserRepo()
	first := repo.seed("First", "first@example.com", domain.RoleUser)
	second := repo.seed("Second", "second@example.com", domain.RoleUser)
	svc := newTestService(repo)

	// Duplicate elements still reference existing users; the batch is valid
	// and deletes the distinct set.
	err := svc.BulkDeleteUsers(context.Background(), nil, []string{first.ID, first.ID, second.ID})
	require.NoError(t, err)
	assert.Empty(t, repo.users)
}

func TestBulkDeleteUsers_Validation(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Kept", "kept@example.com", domain.RoleUser)
	svc := newTestService(repo)

	err := svc.BulkDeleteUsers(context.Background(), nil, nil)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "ids")

	err = svc.BulkDeleteUsers(context.Background(), nil, []string{"not-a-uuid"})
	fields = validationFields(t, err)
	assert.Contains(t, fields, "ids.0")
	assert.Len(t, repo.users, 1)
	_ = user
}

func TestMutationsPublishAuditEvents(t *testing.T) {
	repo := newStubUserRepo()
	dispatcher := events.NewInMemoryDispatcher()

	var seen []events.EventType
	collect := func(_ context.Context, event events.Event) error {
		seen = append(seen, event.Type)
		return nil
	}
	dispatcher.Subscribe(events.EventUserCreated, collect)
	dispatcher.Subscribe(events.EventUserDeleted, collect)

	svc := NewUserService(UserDependencies{
		UserRepo:   repo,
		Dispatcher: dispatcher,
		BcryptCost: bcrypt.MinCost,
	})

	actor := repo.seed("Admin", "admin@example.com", domain.RoleAdmin)
	user, err := svc.CreateUser(context.Background(), actor, UserInput{
		Name:  "Audited",
		Email: "audited@example.com",
		Role:  domain.RoleUser,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(context.Background(), actor, user.ID))

	assert.Equal(t, []events.EventType{events.EventUserCreated, events.EventUserDeleted}, seen)
}

func TestEnsureAdmin(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)

	created, err := svc.EnsureAdmin(context.Background(), "root@example.com", "bootstrap-secret")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, repo.users, 1)
	assert.Equal(t, domain.RoleAdmin, repo.users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[0].PasswordHash), []byte("bootstrap-secret")))

	created, err = svc.EnsureAdmin(context.Background(), "root@example.com", "bootstrap-secret")
	require.NoError(t, err)
	assert.False(t, created, "seeding is a no-op once an admin exists")

	empty := newStubUserRepo()
	_, err = newTestService(empty).EnsureAdmin(context.Background(), "", "")
	assert.Error(t, err)
}
