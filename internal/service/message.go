package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/redis"
)

// MessageService 封装留言相关业务操作。
type MessageService struct {
	links      *LinkService
	repo       storage.MessageRepository
	cache      *redis.Cache // 可选，用于跨实例的新留言广播
	maxContent int          // 留言内容最大字符数，0 使用默认值
	logger     *zap.Logger
	notifier   MessageNotifier // 可选，本进程内的实时推送
}

// MessageNotifier 接收新留言入库后的通知（WebSocket 推送等）。
type MessageNotifier interface {
	NotifyNewMessage(link *domain.Link, message *domain.Message)
}

// NewMessageService 创建留言业务服务。
func NewMessageService(links *LinkService, repo storage.MessageRepository, logger *zap.Logger) *MessageService {
	return &MessageService{
		links:  links,
		repo:   repo,
		logger: logger,
	}
}

// SetCache 设置 Redis 缓存（用于发布新留言事件）。
func (s *MessageService) SetCache(cache *redis.Cache) {
	s.cache = cache
}

// SetNotifier 设置实时推送通知器。
func (s *MessageService) SetNotifier(notifier MessageNotifier) {
	s.notifier = notifier
}

// SetMaxContentLength 覆盖留言内容长度限制（来自配置）。
func (s *MessageService) SetMaxContentLength(maxLen int) {
	s.maxContent = maxLen
}

// SubmitMessageInput 定义投递留言所需的输入。
//
// Attribution 来自外部身份提供方，原样记录；IP 和 UserAgent
// 由传输层采集后传入。
type SubmitMessageInput struct {
	PublicID    string
	Content     string
	Attribution domain.Attribution
	SenderIP    string
	UserAgent   string
}

// Submit 通过公开令牌向信箱投递一条留言。
//
// 信箱不存在或已封禁统一返回 storage.ErrLinkNotFound，
// 投递者无法探测封禁状态。
func (s *MessageService) Submit(input SubmitMessageInput) (*domain.Message, error) {
	link, err := s.links.ResolveByPublicID(input.PublicID)
	if err != nil {
		return nil, err
	}

	content, err := domain.ValidateContentWithLimit(input.Content, s.maxContent)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:       uuid.NewString(),
		LinkID:   link.ID,
		Content:  content,
		Nickname: link.Nickname,
		// 身份信息原样记录，不做真实性校验
		SenderName:      input.Attribution.Name,
		SenderEmail:     input.Attribution.Email,
		SenderPicture:   input.Attribution.Picture,
		SenderSubjectID: input.Attribution.SubjectID,
		SenderIP:        input.SenderIP,
		UserAgent:       input.UserAgent,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.repo.SaveMessage(message); err != nil {
		return nil, err
	}

	s.logger.Info("留言已投递",
		zap.String("message_id", message.ID),
		zap.String("link_id", link.ID),
		zap.Bool("attributed", !input.Attribution.IsZero()))

	// 入库成功后广播，推送失败不影响投递结果
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(link, message)
	}
	if s.cache != nil {
		if err := s.cache.PublishNewMessage(link.ID, message); err != nil {
			s.logger.Debug("新留言事件发布失败", zap.Error(err))
		}
	}

	return message, nil
}

// InboxView 是收件令牌换取的完整收件箱视图。
type InboxView struct {
	Link     *domain.Link     `json:"link"`
	Messages []domain.Message `json:"messages"`
}

// GetInbox 通过收件令牌获取信箱及其全部留言。
//
// 留言按创建时间倒序，同一时间戳按入库次序。封禁中的信箱
// 同样可以读取。
func (s *MessageService) GetInbox(inboxID string) (*InboxView, error) {
	link, err := s.links.ResolveByInboxID(inboxID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(link.ID)
	if err != nil {
		return nil, err
	}

	return &InboxView{
		Link:     link,
		Messages: messages,
	}, nil
}

// Delete 通过收件令牌删除一条留言（幂等）。
//
// 只能删除令牌对应信箱自己的留言，防止持有任一收件令牌
// 就能删除他人留言。
func (s *MessageService) Delete(inboxID, messageID string) error {
	link, err := s.links.ResolveByInboxID(inboxID)
	if err != nil {
		return err
	}

	messages, err := s.repo.ListMessages(link.ID)
	if err != nil {
		return err
	}

	for _, m := range messages {
		if m.ID == messageID {
			if err := s.repo.DeleteMessage(messageID); err != nil {
				return err
			}
			s.logger.Info("留言已删除",
				zap.String("message_id", messageID),
				zap.String("link_id", link.ID))
			return nil
		}
	}

	// 留言不存在或不属于该信箱，幂等处理
	return nil
}

// Count 统计信箱的留言数量。
func (s *MessageService) Count(linkID string) (int, error) {
	return s.repo.CountMessages(linkID)
}
