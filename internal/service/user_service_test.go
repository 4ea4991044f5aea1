package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

func existingUser() *domain.User {
	return &domain.User{
		ID:             uuid.New(),
		Email:          "ada@school.test",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Role:           domain.RoleStudent,
		ProfileID:      uuid.New(),
		HashedPassword: "hashed:old-password",
		CreatedAt:      time.Now().Add(-time.Hour),
		UpdatedAt:      time.Now().Add(-time.Hour),
	}
}

func newTestUserService(users *mockUserStore) UserService {
	return NewUserService(users, noTx, plainHasher{}, quietLogger())
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Run("updates own account and hashes the new password", func(t *testing.T) {
		user := existingUser()
		var saved *domain.User
		users := &mockUserStore{
			GetByIDFn: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
				assert.Equal(t, user.ID, id)
				return user, nil
			},
			UpdateFn: func(_ context.Context, u *domain.User) error {
				saved = u
				return nil
			},
		}
		email, first, password := " Ada.L@School.test ", " Augusta ", "correct-horse-battery"

		got, err := newTestUserService(users).UpdateUser(context.Background(), user.ID, user.ID, UpdateUserInput{
			Email:     &email,
			FirstName: &first,
			Password:  &password,
		})
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "ada.l@school.test", got.Email)
		assert.Equal(t, "Augusta", got.FirstName)
		assert.Equal(t, "Lovelace", got.LastName)
		assert.Equal(t, "hashed:correct-horse-battery", saved.HashedPassword)
		assert.Empty(t, saved.Password)
	})

	t.Run("other accounts are forbidden", func(t *testing.T) {
		_, err := newTestUserService(&mockUserStore{}).UpdateUser(context.Background(), uuid.New(), uuid.New(), UpdateUserInput{})
		assert.ErrorIs(t, err, ErrNotOwned)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("short password", func(t *testing.T) {
		user := existingUser()
		users := &mockUserStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.User, error) { return user, nil },
		}
		short := "abc"
		_, err := newTestUserService(users).UpdateUser(context.Background(), user.ID, user.ID, UpdateUserInput{Password: &short})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("invalid email", func(t *testing.T) {
		user := existingUser()
		users := &mockUserStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.User, error) { return user, nil },
		}
		bad := "not-an-email"
		_, err := newTestUserService(users).UpdateUser(context.Background(), user.ID, user.ID, UpdateUserInput{Email: &bad})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("duplicate email passes through", func(t *testing.T) {
		user := existingUser()
		users := &mockUserStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.User, error) { return user, nil },
			UpdateFn:  func(context.Context, *domain.User) error { return store.ErrEmailExists },
		}
		email := "grace@school.test"
		_, err := newTestUserService(users).UpdateUser(context.Background(), user.ID, user.ID, UpdateUserInput{Email: &email})
		assert.ErrorIs(t, err, store.ErrEmailExists)
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	id := uuid.New()
	deleted := false
	users := &mockUserStore{
		DeleteFn: func(_ context.Context, got uuid.UUID) error {
			deleted = got == id
			return nil
		},
	}
	svc := newTestUserService(users)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), uuid.New(), id), ErrNotOwned)
	assert.False(t, deleted)

	require.NoError(t, svc.DeleteUser(context.Background(), id, id))
	assert.True(t, deleted)
}

func TestUserService_ListUsers(t *testing.T) {
	users := &mockUserStore{
		ListFn: func(_ context.Context, role *domain.Role) ([]domain.User, error) {
			require.NotNil(t, role)
			return []domain.User{*existingUser()}, nil
		},
	}
	svc := newTestUserService(users)

	role := domain.RoleStudent
	list, err := svc.ListUsers(context.Background(), &role)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	bogus := domain.Role("ADMIN")
	_, err = svc.ListUsers(context.Background(), &bogus)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserService_CreateTeacher(t *testing.T) {
	t.Run("creates a hashed teacher", func(t *testing.T) {
		var created *domain.User
		users := &mockUserStore{
			CreateFn: func(_ context.Context, u *domain.User) error {
				created = u
				return nil
			},
		}
		got, err := newTestUserService(users).CreateTeacher(context.Background(),
			"Grace@School.test", "Grace", "Hopper", "correct-horse-battery")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, domain.RoleTeacher, got.Role)
		assert.Equal(t, "grace@school.test", got.Email)
		assert.NotEqual(t, uuid.Nil, got.ProfileID)
		assert.Equal(t, "hashed:correct-horse-battery", created.HashedPassword)
		assert.Empty(t, created.Password)
	})

	t.Run("password too close to the name", func(t *testing.T) {
		_, err := newTestUserService(&mockUserStore{}).CreateTeacher(context.Background(),
			"grace@school.test", "Grace", "Hopper", "hopperhop")
		assert.ErrorIs(t, err, auth.ErrPasswordTooSimilar)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := newTestUserService(&mockUserStore{}).CreateTeacher(context.Background(),
			"grace@school.test", "Grace", "Hopper", "short")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("existing email", func(t *testing.T) {
		users := &mockUserStore{
			CreateFn: func(context.Context, *domain.User) error { return store.ErrEmailExists },
		}
		_, err := newTestUserService(users).CreateTeacher(context.Background(),
			"grace@school.test", "Grace", "Hopper", "correct-horse-battery")
		assert.ErrorIs(t, err, store.ErrEmailExists)
	})
}

func TestUserService_ResetPassword(t *testing.T) {
	user := existingUser()
	var saved *domain.User
	users := &mockUserStore{
		GetByEmailFn: func(_ context.Context, email string) (*domain.User, error) {
			if email != user.Email {
				return nil, store.ErrUserNotFound
			}
			return user, nil
		},
		UpdateFn: func(_ context.Context, u *domain.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestUserService(users)

	require.NoError(t, svc.ResetPassword(context.Background(), user.Email, "correct-horse-battery"))
	require.NotNil(t, saved)
	assert.Equal(t, "hashed:correct-horse-battery", saved.HashedPassword)

	err := svc.ResetPassword(context.Background(), "nobody@school.test", "correct-horse-battery")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
