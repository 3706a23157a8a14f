package storage

import (
	"errors"

	"whisperflow/backend/internal/domain"
)

var (
	// ErrLinkNotFound 信箱不存在
	ErrLinkNotFound = errors.New("link not found")
	// ErrMessageNotFound 留言不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrTokenTaken 令牌与已有信箱冲突（调用方应重新生成令牌后重试）
	ErrTokenTaken = errors.New("token already taken")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 邮箱已被注册
	ErrEmailExists = errors.New("email already exists")
)

// LinkRepository 定义信箱数据存取操作。
//
// Get* 是不带可见性策略的裸查询；"公开令牌只见激活信箱"的策略
// 在 service 层实施。
type LinkRepository interface {
	SaveLink(link *domain.Link) error
	GetLink(id string) (*domain.Link, error)
	GetLinkByPublicID(publicID string) (*domain.Link, error)
	GetLinkByInboxID(inboxID string) (*domain.Link, error)
	ListLinks() []domain.Link
	SetLinkActive(id string, active bool) (*domain.Link, error)
}

// MessageRepository 定义留言数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	ListMessages(linkID string) ([]domain.Message, error)
	ListAllMessages() []domain.Message
	DeleteMessage(messageID string) error
	CountMessages(linkID string) (int, error)
}

// UserRepository 定义后台用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateLastLogin(userID string) error
}

// AdminRepository 定义管理后台的聚合读取操作。
type AdminRepository interface {
	GetSystemStatistics() (*domain.SystemStatistics, error)
}

// Store 定义完整的存储接口。
type Store interface {
	LinkRepository
	MessageRepository
	UserRepository
	AdminRepository

	// 工具方法
	Close() error
	Health() error
}
