package memory

import (
	"sort"
	"sync"
	"time"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
)

// Store 使用内存保存信箱与留言数据，主要用于开发验证与测试。
//
// 所有集合操作都在同一把读写锁内完成：写操作互斥，读操作并发。
type Store struct {
	mu         sync.RWMutex
	links      map[string]*domain.Link      // linkID -> link
	byPublicID map[string]string            // publicID -> linkID
	byInboxID  map[string]string            // inboxID -> linkID
	messages   map[string][]*domain.Message // linkID -> 按插入顺序排列的留言
	byMessage  map[string]string            // messageID -> linkID

	users      map[string]*domain.User // userID -> user
	byEmail    map[string]string       // email -> userID
	byUsername map[string]string       // username -> userID

	seq int64 // 留言插入序号，同一时间戳时保证稳定排序
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		links:      make(map[string]*domain.Link),
		byPublicID: make(map[string]string),
		byInboxID:  make(map[string]string),
		messages:   make(map[string][]*domain.Message),
		byMessage:  make(map[string]string),
		users:      make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// ========== Link Repository ==========

// SaveLink 保存信箱。令牌与现存信箱冲突时返回 ErrTokenTaken，绝不静默覆盖。
func (s *Store) SaveLink(link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerID, ok := s.byPublicID[link.PublicID]; ok && ownerID != link.ID {
		return storage.ErrTokenTaken
	}
	if ownerID, ok := s.byInboxID[link.InboxID]; ok && ownerID != link.ID {
		return storage.ErrTokenTaken
	}
	// 两个索引空间共享同一个唯一性要求
	if ownerID, ok := s.byInboxID[link.PublicID]; ok && ownerID != link.ID {
		return storage.ErrTokenTaken
	}
	if ownerID, ok := s.byPublicID[link.InboxID]; ok && ownerID != link.ID {
		return storage.ErrTokenTaken
	}

	stored := *link
	s.links[link.ID] = &stored
	s.byPublicID[link.PublicID] = link.ID
	s.byInboxID[link.InboxID] = link.ID
	return nil
}

// GetLink 根据内部 ID 获取信箱。
func (s *Store) GetLink(id string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, storage.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

// GetLinkByPublicID 根据公开令牌获取信箱（不过滤激活状态）。
func (s *Store) GetLinkByPublicID(publicID string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPublicID[publicID]
	if !ok {
		return nil, storage.ErrLinkNotFound
	}
	out := *s.links[id]
	return &out, nil
}

// GetLinkByInboxID 根据收件令牌获取信箱。
func (s *Store) GetLinkByInboxID(inboxID string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byInboxID[inboxID]
	if !ok {
		return nil, storage.ErrLinkNotFound
	}
	out := *s.links[id]
	return &out, nil
}

// ListLinks 返回全部信箱快照，按创建时间倒序。
func (s *Store) ListLinks() []domain.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Link, 0, len(s.links))
	for _, link := range s.links {
		out = append(out, *link)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SetLinkActive 设置信箱激活状态，幂等，返回更新后的信箱。
func (s *Store) SetLinkActive(id string, active bool) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return nil, storage.ErrLinkNotFound
	}
	link.IsActive = active
	out := *link
	return &out, nil
}

// ========== Message Repository ==========

// SaveMessage 保存留言。所属信箱必须存在。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[message.LinkID]; !ok {
		return storage.ErrLinkNotFound
	}

	s.seq++
	message.Seq = s.seq

	stored := *message
	s.messages[message.LinkID] = append(s.messages[message.LinkID], &stored)
	s.byMessage[message.ID] = message.LinkID
	return nil
}

// ListMessages 返回指定信箱的全部留言，按创建时间倒序；
// 时间戳相同时按插入顺序稳定排序。
func (s *Store) ListMessages(linkID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.links[linkID]; !ok {
		return nil, storage.ErrLinkNotFound
	}

	stored := s.messages[linkID]
	out := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, *m)
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAllMessages 返回系统内全部留言（管理视图），按创建时间倒序。
func (s *Store) ListAllMessages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0, len(s.byMessage))
	for _, msgs := range s.messages {
		for _, m := range msgs {
			out = append(out, *m)
		}
	}
	sortNewestFirst(out)
	return out
}

// DeleteMessage 删除留言，幂等：留言不存在不算错误。
func (s *Store) DeleteMessage(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	linkID, ok := s.byMessage[messageID]
	if !ok {
		return nil
	}

	msgs := s.messages[linkID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[linkID] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	delete(s.byMessage, messageID)
	return nil
}

// CountMessages 返回指定信箱的留言数量。
func (s *Store) CountMessages(linkID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.links[linkID]; !ok {
		return 0, storage.ErrLinkNotFound
	}
	return len(s.messages[linkID]), nil
}

// sortNewestFirst 按创建时间倒序稳定排序，序号小的（先插入）排在同时间戳的前面。
func sortNewestFirst(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
}

// ========== User Repository ==========

// CreateUser 创建后台用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return storage.ErrEmailExists
	}

	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[user.Email] = user.ID
	if user.Username != "" {
		s.byUsername[user.Username] = user.ID
	}
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// GetUserByEmail 根据邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

// UpdateLastLogin 更新最近登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// ========== Admin Repository ==========

// GetSystemStatistics 统计系统总览数据。
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats := &domain.SystemStatistics{
		TotalLinks:  len(s.links),
		GeneratedAt: now,
	}
	for _, link := range s.links {
		if link.IsActive {
			stats.ActiveLinks++
		} else {
			stats.BlockedLinks++
		}
	}
	for _, msgs := range s.messages {
		stats.TotalMessages += len(msgs)
		for _, m := range msgs {
			if !m.Attribution().IsZero() {
				stats.AttributedMessages++
			}
			if !m.CreatedAt.Before(startOfDay) {
				stats.MessagesToday++
			}
		}
	}
	return stats, nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}
