package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage/memory"
)

func newTestService() *Service {
	return NewService(memory.NewStore())
}

func TestCreateAdmin(t *testing.T) {
	t.Run("创建管理员成功", func(t *testing.T) {
		svc := newTestService()

		user, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "Admin@Example.com",
			Username: "admin",
			Password: "secure-password",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		// 邮箱统一小写
		assert.Equal(t, "admin@example.com", user.Email)
		assert.Equal(t, domain.RoleAdmin, user.Role)
		assert.True(t, user.IsActive)
		// 密码只存哈希
		assert.NotEqual(t, "secure-password", user.PasswordHash)
		assert.True(t, CheckPassword("secure-password", user.PasswordHash))
	})

	t.Run("指定超级管理员角色", func(t *testing.T) {
		svc := newTestService()

		user, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "super@example.com",
			Password: "secure-password",
			Role:     domain.RoleSuper,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.RoleSuper, user.Role)
		assert.True(t, user.IsSuper())
	})

	t.Run("非法邮箱被拒绝", func(t *testing.T) {
		svc := newTestService()

		_, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "not-an-email",
			Password: "secure-password",
		})
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("弱密码被拒绝", func(t *testing.T) {
		svc := newTestService()

		_, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "admin@example.com",
			Password: "short",
		})
		assert.Error(t, err)
	})

	t.Run("重复邮箱被拒绝", func(t *testing.T) {
		svc := newTestService()

		_, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "admin@example.com",
			Password: "secure-password",
		})
		require.NoError(t, err)

		_, err = svc.CreateAdmin(CreateAdminInput{
			Email:    "admin@example.com",
			Password: "another-password",
		})
		assert.ErrorIs(t, err, ErrEmailExists)
	})
}

func TestLogin(t *testing.T) {
	setup := func(t *testing.T) *Service {
		t.Helper()
		svc := newTestService()
		_, err := svc.CreateAdmin(CreateAdminInput{
			Email:    "admin@example.com",
			Username: "admin",
			Password: "secure-password",
		})
		require.NoError(t, err)
		return svc
	}

	t.Run("邮箱登录成功", func(t *testing.T) {
		svc := setup(t)

		user, err := svc.Login(LoginInput{
			Identifier: "admin@example.com",
			Password:   "secure-password",
		})

		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", user.Email)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("用户名登录成功", func(t *testing.T) {
		svc := setup(t)

		user, err := svc.Login(LoginInput{
			Identifier: "admin",
			Password:   "secure-password",
		})

		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", user.Email)
	})

	t.Run("错误密码被拒绝", func(t *testing.T) {
		svc := setup(t)

		_, err := svc.Login(LoginInput{
			Identifier: "admin@example.com",
			Password:   "wrong-password",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("不存在的用户被拒绝", func(t *testing.T) {
		svc := setup(t)

		_, err := svc.Login(LoginInput{
			Identifier: "ghost@example.com",
			Password:   "secure-password",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("1234567"))
	assert.NoError(t, ValidatePassword("12345678"))
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidatePassword(string(long)))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("a@b.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.org"))
	assert.False(t, ValidateEmail("missing-at.example.com"))
	assert.False(t, ValidateEmail("a@b"))
}
