package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/redis"
)

// AdminService 封装管理后台的聚合视图操作。
type AdminService struct {
	store  storage.Store
	cache  *redis.Cache // 可选，统计结果短时缓存
	ttl    time.Duration
	logger *zap.Logger
}

// NewAdminService 创建管理后台服务。
func NewAdminService(store storage.Store, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:  store,
		logger: logger,
	}
}

// SetCache 设置统计缓存（可选）。
func (s *AdminService) SetCache(cache *redis.Cache, ttl time.Duration) {
	s.cache = cache
	s.ttl = ttl
}

// GetStatistics 获取系统统计数据。
func (s *AdminService) GetStatistics() (*domain.SystemStatistics, error) {
	if s.cache != nil {
		if stats, err := s.cache.GetCachedStatistics(); err == nil {
			return stats, nil
		}
	}

	stats, err := s.store.GetSystemStatistics()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheStatistics(stats, s.ttl); err != nil {
			s.logger.Debug("统计缓存写入失败", zap.Error(err))
		}
	}
	return stats, nil
}

// LinkOverview 是管理后台的信箱概览条目。
type LinkOverview struct {
	domain.Link
	MessageCount int `json:"messageCount"`
}

// ListLinks 列出全部信箱及各自的留言数。
func (s *AdminService) ListLinks() []LinkOverview {
	links := s.store.ListLinks()
	overviews := make([]LinkOverview, 0, len(links))
	for _, link := range links {
		count, err := s.store.CountMessages(link.ID)
		if err != nil {
			count = 0
		}
		overviews = append(overviews, LinkOverview{
			Link:         link,
			MessageCount: count,
		})
	}
	return overviews
}

// MessageGroup 是按某个维度聚合的一组留言。
type MessageGroup struct {
	Key      string           `json:"key"`
	Label    string           `json:"label"`
	Count    int              `json:"count"`
	Messages []domain.Message `json:"messages"`
}

// 完全匿名留言的聚合桶
const anonymousGroupKey = "anonymous"

// GroupMessagesBySender 按发送者身份聚合全部留言。
//
// 聚合键优先取外部身份主体ID，其次取邮箱，两者皆无的归入
// 匿名桶。组内保持原有排序，组间按留言数倒序。
func (s *AdminService) GroupMessagesBySender() []MessageGroup {
	return groupMessages(s.store.ListAllMessages(), func(m *domain.Message) (string, string) {
		switch {
		case m.SenderSubjectID != "":
			return "subject:" + m.SenderSubjectID, m.SenderName
		case m.SenderEmail != "":
			return "email:" + m.SenderEmail, m.SenderEmail
		default:
			return anonymousGroupKey, "匿名"
		}
	})
}

// GroupMessagesByNickname 按信箱昵称聚合全部留言。
func (s *AdminService) GroupMessagesByNickname() []MessageGroup {
	return groupMessages(s.store.ListAllMessages(), func(m *domain.Message) (string, string) {
		return "nickname:" + m.Nickname, m.Nickname
	})
}

func groupMessages(messages []domain.Message, keyFn func(*domain.Message) (string, string)) []MessageGroup {
	index := make(map[string]int)
	groups := make([]MessageGroup, 0)

	for i := range messages {
		key, label := keyFn(&messages[i])
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, MessageGroup{Key: key, Label: label})
		}
		groups[pos].Messages = append(groups[pos].Messages, messages[i])
		groups[pos].Count++
	}

	// 组间按留言数倒序，数量相同按键名稳定排序
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}
