package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/redis"
	"whisperflow/backend/internal/token"
)

// ErrTokenExhausted 令牌生成连续冲突，重试次数耗尽
var ErrTokenExhausted = errors.New("token generation retries exhausted")

// 令牌冲突时的最大重试次数。32 字符的 base62 令牌冲突概率
// 可以忽略，连续冲突说明随机源或存储已经出了问题。
const maxTokenAttempts = 5

// LinkService 封装信箱相关业务操作。
//
// 可见性策略在这一层实施：公开令牌只解析激活中的信箱，
// 收件令牌不受封禁影响。存储层只提供裸查询。
type LinkService struct {
	repo        storage.LinkRepository
	cache       *redis.Cache // 可选，nil 表示不启用缓存
	ttl         time.Duration
	maxNickname int // 昵称最大字符数，0 使用默认值
	logger      *zap.Logger
}

// NewLinkService 创建信箱业务服务。
func NewLinkService(repo storage.LinkRepository, logger *zap.Logger) *LinkService {
	return &LinkService{
		repo:   repo,
		logger: logger,
	}
}

// SetCache 设置令牌解析缓存（可选）。
func (s *LinkService) SetCache(cache *redis.Cache, ttl time.Duration) {
	s.cache = cache
	s.ttl = ttl
}

// SetMaxNicknameLength 覆盖昵称长度限制（来自配置）。
func (s *LinkService) SetMaxNicknameLength(maxLen int) {
	s.maxNickname = maxLen
}

// CreateLinkInput 定义创建信箱所需的输入。
type CreateLinkInput struct {
	Nickname string
}

// Create 创建新的匿名信箱。
//
// 两个令牌独立生成，彼此不可推导。存储报告令牌冲突时整组
// 重新生成后重试，重试耗尽返回 ErrTokenExhausted。
func (s *LinkService) Create(input CreateLinkInput) (*domain.Link, error) {
	nickname, err := domain.ValidateNicknameWithLimit(input.Nickname, s.maxNickname)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		publicID := token.New()
		inboxID := token.New()
		// 同一信箱的两个令牌也不允许相同
		if publicID == inboxID {
			continue
		}

		link := &domain.Link{
			ID:        uuid.NewString(),
			Nickname:  nickname,
			PublicID:  publicID,
			InboxID:   inboxID,
			CreatedAt: time.Now().UTC(),
			IsActive:  true,
		}

		err := s.repo.SaveLink(link)
		if errors.Is(err, storage.ErrTokenTaken) {
			s.logger.Warn("令牌冲突，重新生成",
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("信箱已创建",
			zap.String("link_id", link.ID),
			zap.String("nickname", link.Nickname))
		return link, nil
	}

	return nil, ErrTokenExhausted
}

// ResolveByPublicID 用公开令牌解析信箱（仅投递权限）。
//
// 已封禁的信箱在这条路径上和不存在的信箱不可区分，
// 统一返回 storage.ErrLinkNotFound。
func (s *LinkService) ResolveByPublicID(publicID string) (*domain.Link, error) {
	if publicID == "" {
		return nil, storage.ErrLinkNotFound
	}

	link, err := s.lookupByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if !link.IsActive {
		return nil, storage.ErrLinkNotFound
	}
	return link, nil
}

// ResolveByInboxID 用收件令牌解析信箱（读取和管理权限）。
//
// 封禁不影响这条路径，所有者始终能查看自己的信箱。
func (s *LinkService) ResolveByInboxID(inboxID string) (*domain.Link, error) {
	if inboxID == "" {
		return nil, storage.ErrLinkNotFound
	}
	return s.lookupByInboxID(inboxID)
}

// Get 根据内部ID获取信箱（管理后台使用）。
func (s *LinkService) Get(id string) (*domain.Link, error) {
	return s.repo.GetLink(id)
}

// List 列出全部信箱（管理后台使用）。
func (s *LinkService) List() []domain.Link {
	return s.repo.ListLinks()
}

// SetActive 设置信箱的激活状态（幂等）。
//
// 返回更新后的信箱。切换后立即失效令牌缓存，保证封禁
// 即刻对公开路径生效。
func (s *LinkService) SetActive(id string, active bool) (*domain.Link, error) {
	link, err := s.repo.SetLinkActive(id, active)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateLink(link); err != nil {
			s.logger.Warn("令牌缓存失效失败",
				zap.String("link_id", link.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("信箱状态已更新",
		zap.String("link_id", link.ID),
		zap.Bool("is_active", link.IsActive))
	return link, nil
}

// Toggle 翻转信箱的激活状态，返回更新后的信箱。
func (s *LinkService) Toggle(id string) (*domain.Link, error) {
	link, err := s.repo.GetLink(id)
	if err != nil {
		return nil, err
	}
	return s.SetActive(id, !link.IsActive)
}

func (s *LinkService) lookupByPublicID(publicID string) (*domain.Link, error) {
	if s.cache != nil {
		if link, err := s.cache.GetCachedLinkByPublicID(publicID); err == nil {
			return link, nil
		}
	}

	link, err := s.repo.GetLinkByPublicID(publicID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheLinkByPublicID(link, s.ttl); err != nil {
			s.logger.Debug("令牌缓存写入失败", zap.Error(err))
		}
	}
	return link, nil
}

func (s *LinkService) lookupByInboxID(inboxID string) (*domain.Link, error) {
	if s.cache != nil {
		if link, err := s.cache.GetCachedLinkByInboxID(inboxID); err == nil {
			return link, nil
		}
	}

	link, err := s.repo.GetLinkByInboxID(inboxID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheLinkByInboxID(link, s.ttl); err != nil {
			s.logger.Debug("令牌缓存写入失败", zap.Error(err))
		}
	}
	return link, nil
}
