package domain

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleSuper UserRole = "super" // 超级管理员
)

// User 表示后台管理用户的业务实体。
//
// 留言的发送者与信箱所有者都不需要账号（能力令牌即授权），
// 账号只用于管理后台。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username     string     `json:"username,omitempty" gorm:"type:varchar(100)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Role         UserRole   `json:"role" gorm:"type:varchar(20);default:'admin';index"`
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdmin 判断用户是否拥有管理权限
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuper
}

// IsSuper 判断用户是否为超级管理员
func (u *User) IsSuper() bool {
	return u.Role == RoleSuper
}
