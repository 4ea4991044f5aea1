package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
)

type fakeUsers struct {
	service.UserService
	CreateTeacherFn func(ctx context.Context, email, firstName, lastName, password string) (*domain.User, error)
	ListUsersFn     func(ctx context.Context, role *domain.Role) ([]domain.User, error)
	ResetPasswordFn func(ctx context.Context, email, password string) error
}

func (f *fakeUsers) CreateTeacher(ctx context.Context, email, firstName, lastName, password string) (*domain.User, error) {
	return f.CreateTeacherFn(ctx, email, firstName, lastName, password)
}

func (f *fakeUsers) ListUsers(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	return f.ListUsersFn(ctx, role)
}

func (f *fakeUsers) ResetPassword(ctx context.Context, email, password string) error {
	return f.ResetPasswordFn(ctx, email, password)
}

// testContext returns a context whose password prompt yields passwords in
// order.
func testContext(users service.UserService, passwords ...string) *commandContext {
	cc := &commandContext{
		users: func(context.Context) (service.UserService, error) { return users, nil },
		migrate: func(context.Context, string, ...string) error {
			return errors.New("unexpected migrate")
		},
		create: func(string, string) error { return errors.New("unexpected create") },
	}
	cc.readPassword = func(int) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more input")
		}
		p := passwords[0]
		passwords = passwords[1:]
		return []byte(p), nil
	}
	return cc
}

func execute(t *testing.T, cc *commandContext, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(cc)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	for _, command := range []string{"up", "down", "status", "version"} {
		t.Run(command, func(t *testing.T) {
			cc := testContext(nil)
			var got string
			cc.migrate = func(_ context.Context, c string, args ...string) error {
				got = c
				assert.Empty(t, args)
				return nil
			}
			_, err := execute(t, cc, "migrate", command)
			require.NoError(t, err)
			assert.Equal(t, command, got)
		})
	}
}

func TestMigrateCreate(t *testing.T) {
	cc := testContext(nil)
	var gotDir, gotName string
	cc.create = func(dir, name string) error {
		gotDir, gotName = dir, name
		return nil
	}

	_, err := execute(t, cc, "migrate", "create", "add_rule_index")
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationsDir, gotDir)
	assert.Equal(t, "add_rule_index", gotName)

	_, err = execute(t, cc, "migrate", "create")
	assert.Error(t, err)
}

func TestTeacherCreate(t *testing.T) {
	teacher := &domain.User{
		ID:        uuid.New(),
		Email:     "grace@school.test",
		Role:      domain.RoleTeacher,
		ProfileID: uuid.New(),
	}

	t.Run("creates with the prompted password", func(t *testing.T) {
		users := &fakeUsers{
			CreateTeacherFn: func(_ context.Context, email, first, last, password string) (*domain.User, error) {
				assert.Equal(t, "grace@school.test", email)
				assert.Equal(t, "Grace", first)
				assert.Equal(t, "Hopper", last)
				assert.Equal(t, "s3cure-passw0rd", password)
				return teacher, nil
			},
		}
		out, err := execute(t, testContext(users, "s3cure-passw0rd", "s3cure-passw0rd"),
			"teacher", "create", "--email", "grace@school.test", "--first-name", "Grace", "--last-name", "Hopper")
		require.NoError(t, err)
		assert.Contains(t, out, "created teacher grace@school.test")
		assert.Contains(t, out, teacher.ProfileID.String())
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		_, err := execute(t, testContext(&fakeUsers{}, "one-password", "another-one"),
			"teacher", "create", "--email", "grace@school.test", "--first-name", "Grace", "--last-name", "Hopper")
		assert.ErrorIs(t, err, errPasswordMismatch)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := execute(t, testContext(&fakeUsers{}, ""),
			"teacher", "create", "--email", "grace@school.test", "--first-name", "Grace", "--last-name", "Hopper")
		assert.ErrorIs(t, err, errEmptyPassword)
	})

	t.Run("missing flags", func(t *testing.T) {
		_, err := execute(t, testContext(&fakeUsers{}), "teacher", "create", "--email", "grace@school.test")
		assert.Error(t, err)
	})

	t.Run("service error is wrapped", func(t *testing.T) {
		users := &fakeUsers{
			CreateTeacherFn: func(context.Context, string, string, string, string) (*domain.User, error) {
				return nil, domain.ErrConflict
			},
		}
		_, err := execute(t, testContext(users, "pw-12345678", "pw-12345678"),
			"teacher", "create", "--email", "grace@school.test", "--first-name", "Grace", "--last-name", "Hopper")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestUsersList(t *testing.T) {
	created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	list := []domain.User{
		{Email: "ada@school.test", FirstName: "Ada", LastName: "Lovelace", Role: domain.RoleStudent, ProfileID: uuid.New(), CreatedAt: created},
		{Email: "grace@school.test", FirstName: "Grace", LastName: "Hopper", Role: domain.RoleTeacher, ProfileID: uuid.New(), CreatedAt: created},
	}

	t.Run("all users", func(t *testing.T) {
		users := &fakeUsers{
			ListUsersFn: func(_ context.Context, role *domain.Role) ([]domain.User, error) {
				assert.Nil(t, role)
				return list, nil
			},
		}
		out, err := execute(t, testContext(users), "users", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "ada@school.test")
		assert.Contains(t, out, "Grace Hopper")
		assert.Contains(t, out, "2025-09-01")
	})

	t.Run("role filter is case-insensitive", func(t *testing.T) {
		users := &fakeUsers{
			ListUsersFn: func(_ context.Context, role *domain.Role) ([]domain.User, error) {
				require.NotNil(t, role)
				assert.Equal(t, domain.RoleTeacher, *role)
				return list[1:], nil
			},
		}
		out, err := execute(t, testContext(users), "users", "list", "--role", "teacher")
		require.NoError(t, err)
		assert.NotContains(t, out, "ada@school.test")
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := execute(t, testContext(&fakeUsers{}), "users", "list", "--role", "admin")
		assert.ErrorContains(t, err, "unknown role")
	})
}

func TestUsersResetPassword(t *testing.T) {
	users := &fakeUsers{
		ResetPasswordFn: func(_ context.Context, email, password string) error {
			assert.Equal(t, "Ada@School.test", email)
			assert.Equal(t, "n3w-passw0rd", password)
			return nil
		},
	}
	out, err := execute(t, testContext(users, "n3w-passw0rd", "n3w-passw0rd"),
		"users", "reset-password", "--email", "Ada@School.test")
	require.NoError(t, err)
	assert.Contains(t, out, "password updated for ada@school.test")

	users.ResetPasswordFn = func(context.Context, string, string) error { return errUserMissing }
	_, err = execute(t, testContext(users, "n3w-passw0rd", "n3w-passw0rd"),
		"users", "reset-password", "--email", "nobody@school.test")
	assert.ErrorIs(t, err, errUserMissing)
}

var errUserMissing = errors.New("user not found")
