package domain

import (
	"time"
)

// Link 表示一个匿名留言信箱的业务实体。
//
// 一个 Link 拥有两个互相独立的不可猜测令牌：
//   - PublicID：持有者只能向信箱投递留言（仅投递）
//   - InboxID：持有者可以读取全部留言并管理信箱（读取 + 管理）
//
// 两个令牌都是 bearer 凭证，持有即授权，不做额外身份校验。
type Link struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Nickname  string    `json:"nickname" gorm:"type:varchar(100);not null"`
	PublicID  string    `json:"publicId" gorm:"type:varchar(64);uniqueIndex"`
	InboxID   string    `json:"inboxId" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive" gorm:"default:true;index"`
}
