package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/memory"
)

func newMessageService(t *testing.T) (*MessageService, *LinkService) {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	links := NewLinkService(store, logger)
	return NewMessageService(links, store, logger), links
}

func TestMessageServiceSubmit(t *testing.T) {
	t.Run("匿名投递成功", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "你好",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, message.ID)
		assert.Equal(t, link.ID, message.LinkID)
		assert.Equal(t, "你好", message.Content)
		assert.Equal(t, "小河", message.Nickname)
		assert.True(t, message.Attribution().IsZero())
	})

	t.Run("携带身份信息投递", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "带身份的留言",
			Attribution: domain.Attribution{
				Name:      "张三",
				Email:     "zhangsan@example.com",
				Picture:   "https://example.com/avatar.png",
				SubjectID: "sub-123",
			},
			SenderIP:  "203.0.113.9",
			UserAgent: "test-agent",
		})

		require.NoError(t, err)
		assert.Equal(t, "张三", message.SenderName)
		assert.Equal(t, "zhangsan@example.com", message.SenderEmail)
		assert.Equal(t, "sub-123", message.SenderSubjectID)
		assert.Equal(t, "203.0.113.9", message.SenderIP)
		assert.Equal(t, "test-agent", message.UserAgent)
	})

	t.Run("未知令牌投递失败", func(t *testing.T) {
		svc, _ := newMessageService(t)

		_, err := svc.Submit(SubmitMessageInput{
			PublicID: "does-not-exist",
			Content:  "你好",
		})

		assert.ErrorIs(t, err, storage.ErrLinkNotFound)
	})

	t.Run("封禁信箱投递表现为不存在", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = links.SetActive(link.ID, false)
		require.NoError(t, err)

		_, err = svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "你好",
		})
		assert.ErrorIs(t, err, storage.ErrLinkNotFound)
	})

	t.Run("空内容被拒绝", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "   ",
		})
		assert.ErrorIs(t, err, domain.ErrContentEmpty)
	})

	t.Run("超长内容被拒绝", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  strings.Repeat("长", domain.MaxContentLength+1),
		})
		assert.ErrorIs(t, err, domain.ErrContentTooLong)
	})

	t.Run("配置的内容长度限制生效", func(t *testing.T) {
		svc, links := newMessageService(t)
		svc.SetMaxContentLength(20)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  strings.Repeat("x", 21),
		})
		assert.ErrorIs(t, err, domain.ErrContentTooLong)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  strings.Repeat("x", 20),
		})
		require.NoError(t, err)
		assert.Len(t, message.Content, 20)
	})

	t.Run("收件令牌不能用于投递", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = svc.Submit(SubmitMessageInput{
			PublicID: link.InboxID,
			Content:  "你好",
		})
		assert.ErrorIs(t, err, storage.ErrLinkNotFound)
	})
}

func TestMessageServiceGetInbox(t *testing.T) {
	t.Run("读取收件箱", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		for _, content := range []string{"第一条", "第二条", "第三条"} {
			_, err := svc.Submit(SubmitMessageInput{
				PublicID: link.PublicID,
				Content:  content,
			})
			require.NoError(t, err)
		}

		view, err := svc.GetInbox(link.InboxID)

		require.NoError(t, err)
		assert.Equal(t, link.ID, view.Link.ID)
		require.Len(t, view.Messages, 3)
		// 新的在前
		assert.Equal(t, "第三条", view.Messages[0].Content)
		assert.Equal(t, "第一条", view.Messages[2].Content)
	})

	t.Run("空收件箱返回空列表", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		view, err := svc.GetInbox(link.InboxID)

		require.NoError(t, err)
		assert.NotNil(t, view.Messages)
		assert.Empty(t, view.Messages)
	})

	t.Run("公开令牌不能读取收件箱", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		_, err = svc.GetInbox(link.PublicID)
		assert.ErrorIs(t, err, storage.ErrLinkNotFound)
	})
}

func TestMessageServiceDelete(t *testing.T) {
	t.Run("删除自己的留言", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "待删除",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(link.InboxID, message.ID))

		view, err := svc.GetInbox(link.InboxID)
		require.NoError(t, err)
		assert.Empty(t, view.Messages)
	})

	t.Run("重复删除幂等", func(t *testing.T) {
		svc, links := newMessageService(t)
		link, err := links.Create(CreateLinkInput{Nickname: "小河"})
		require.NoError(t, err)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: link.PublicID,
			Content:  "待删除",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(link.InboxID, message.ID))
		require.NoError(t, svc.Delete(link.InboxID, message.ID))
	})

	t.Run("不能删除别人信箱的留言", func(t *testing.T) {
		svc, links := newMessageService(t)
		mine, err := links.Create(CreateLinkInput{Nickname: "我的"})
		require.NoError(t, err)
		other, err := links.Create(CreateLinkInput{Nickname: "别人的"})
		require.NoError(t, err)

		message, err := svc.Submit(SubmitMessageInput{
			PublicID: other.PublicID,
			Content:  "别人的留言",
		})
		require.NoError(t, err)

		// 用自己的收件令牌删别人的留言，静默忽略
		require.NoError(t, svc.Delete(mine.InboxID, message.ID))

		view, err := svc.GetInbox(other.InboxID)
		require.NoError(t, err)
		assert.Len(t, view.Messages, 1)
	})
}

// 完整走一遍典型使用流程：创建、投递、读取、封禁、解封。
func TestMessageFlowEndToEnd(t *testing.T) {
	svc, links := newMessageService(t)

	// 所有者创建信箱
	link, err := links.Create(CreateLinkInput{Nickname: "river"})
	require.NoError(t, err)

	// 访客通过公开令牌留言
	_, err = svc.Submit(SubmitMessageInput{
		PublicID: link.PublicID,
		Content:  "hello",
	})
	require.NoError(t, err)

	// 所有者读取收件箱
	view, err := svc.GetInbox(link.InboxID)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "hello", view.Messages[0].Content)
	assert.Equal(t, "river", view.Messages[0].Nickname)

	// 封禁后访客无法继续投递，也探测不到信箱存在
	_, err = links.SetActive(link.ID, false)
	require.NoError(t, err)
	_, err = svc.Submit(SubmitMessageInput{
		PublicID: link.PublicID,
		Content:  "blocked",
	})
	assert.ErrorIs(t, err, storage.ErrLinkNotFound)

	// 所有者仍能读到已有留言
	view, err = svc.GetInbox(link.InboxID)
	require.NoError(t, err)
	assert.Len(t, view.Messages, 1)

	// 解封后恢复投递
	_, err = links.SetActive(link.ID, true)
	require.NoError(t, err)
	_, err = svc.Submit(SubmitMessageInput{
		PublicID: link.PublicID,
		Content:  "welcome back",
	})
	require.NoError(t, err)

	view, err = svc.GetInbox(link.InboxID)
	require.NoError(t, err)
	assert.Len(t, view.Messages, 2)
}
