package smtp

import (
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/storage/memory"
)

// 固定的混合大小写令牌，保证测试对令牌大小写敏感性有确定性覆盖
const (
	testPublicID = "aB3xYz9QmNpR5tUvWk2LhJdF8cGe4sIo"
	testInboxID  = "Zp7WqXr4KmYn2TbVu9EsHg6AdCfLj3iM"
)

func newTestBackend(t *testing.T) (*Backend, *memory.Store, *domain.Link) {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	links := service.NewLinkService(store, logger)
	messages := service.NewMessageService(links, store, logger)

	link := &domain.Link{
		ID:        "link-1",
		Nickname:  "树洞",
		PublicID:  testPublicID,
		InboxID:   testInboxID,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	require.NoError(t, store.SaveLink(link))

	return NewBackend(links, messages, "whisper.flow", nil, logger), store, link
}

func smtpCode(t *testing.T, err error) int {
	t.Helper()
	smtpErr, ok := err.(*gosmtp.SMTPError)
	require.True(t, ok, "expected SMTP error, got %v", err)
	return smtpErr.Code
}

func TestSessionRcpt(t *testing.T) {
	t.Run("激活信箱的令牌被接受", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		err := s.Rcpt("<"+testPublicID+"@whisper.flow>", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{testPublicID}, s.publicIDs)
	})

	t.Run("令牌大小写保持原样", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		// 令牌区分大小写，转成小写后就不再对应任何信箱
		err := s.Rcpt("<"+strings.ToLower(testPublicID)+"@whisper.flow>", nil)
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("域名比较不分大小写", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		err := s.Rcpt("<"+testPublicID+"@WHISPER.FLOW>", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{testPublicID}, s.publicIDs)
	})

	t.Run("其他域名拒绝中继", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		err := s.Rcpt("<"+testPublicID+"@elsewhere.example>", nil)
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("未知令牌返回550", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		err := s.Rcpt("<nosuchtoken@whisper.flow>", nil)
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("封禁信箱与不存在的信箱不可区分", func(t *testing.T) {
		backend, store, link := newTestBackend(t)
		_, err := store.SetLinkActive(link.ID, false)
		require.NoError(t, err)

		s := &session{backend: backend}
		blockedErr := s.Rcpt("<"+testPublicID+"@whisper.flow>", nil)
		unknownErr := (&session{backend: backend}).Rcpt("<nosuchtoken@whisper.flow>", nil)

		require.Error(t, blockedErr)
		require.Error(t, unknownErr)
		assert.Equal(t, smtpCode(t, unknownErr), smtpCode(t, blockedErr))
		assert.Equal(t, unknownErr.Error(), blockedErr.Error())
	})

	t.Run("缺少域名的地址返回501", func(t *testing.T) {
		backend, _, _ := newTestBackend(t)
		s := &session{backend: backend}

		err := s.Rcpt("<not-an-address>", nil)
		require.Error(t, err)
		assert.Equal(t, 501, smtpCode(t, err))
	})
}

func TestSessionData(t *testing.T) {
	t.Run("邮件正文变成留言", func(t *testing.T) {
		backend, store, link := newTestBackend(t)
		s := &session{backend: backend}

		require.NoError(t, s.Mail("<Someone@Example.COM>", nil))
		require.NoError(t, s.Rcpt("<"+testPublicID+"@whisper.flow>", nil))

		raw := "From: Someone <someone@example.com>\r\n" +
			"Subject: hi\r\n" +
			"\r\n" +
			"hello from mail\r\n"
		require.NoError(t, s.Data(strings.NewReader(raw)))

		messages, err := store.ListMessages(link.ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "hello from mail", messages[0].Content)
		assert.Equal(t, "someone@example.com", messages[0].SenderEmail)
		assert.Equal(t, "Someone", messages[0].SenderName)
	})

	t.Run("封禁后的投递失败且不留痕迹", func(t *testing.T) {
		backend, store, link := newTestBackend(t)
		s := &session{backend: backend}

		require.NoError(t, s.Mail("<someone@example.com>", nil))
		require.NoError(t, s.Rcpt("<"+testPublicID+"@whisper.flow>", nil))

		// RCPT 通过之后信箱被封禁，投递必须整体失败
		_, err := store.SetLinkActive(link.ID, false)
		require.NoError(t, err)

		raw := "From: someone@example.com\r\n\r\nhello\r\n"
		err = s.Data(strings.NewReader(raw))
		require.Error(t, err)

		messages, listErr := store.ListMessages(link.ID)
		require.NoError(t, listErr)
		assert.Empty(t, messages)
	})
}
