package smtp

import (
	"bufio"
	"io"
	"net/mail"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/monitoring"
	"whisperflow/backend/internal/service"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收的 SMTP 投递入口：发到 <公开令牌>@<域名> 的
// 纯文本邮件会变成对应信箱的一条留言。发件人地址作为身份信息
// 记录，和 HTTP 路径一样不做真实性校验。
//
// 不支持对外发送，不做邮件中继。未知令牌和已封禁的信箱统一
// 返回 550，探测不出两者的区别。
type Backend struct {
	messages *service.MessageService
	links    *service.LinkService
	domain   string
	limiter  *ConnectionLimiter
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(
	links *service.LinkService,
	messages *service.MessageService,
	domain string,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *Backend {
	return &Backend{
		messages: messages,
		links:    links,
		domain:   strings.ToLower(domain),
		limiter:  NewConnectionLimiter(64, 16),
		metrics:  metrics,
		log:      log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	publicIDs   []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 收件地址的本地部分就是公开令牌。令牌区分大小写（base62
// 含大写字母），所以本地部分保持原样，只有域名比较不分大小写。
// 域名不匹配、令牌未知、信箱已封禁都返回 550，防止中继也
// 防止封禁探测。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := strings.TrimSpace(to)
	addr = strings.TrimPrefix(addr, "<")
	addr = strings.TrimSuffix(addr, ">")

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if !strings.EqualFold(parts[1], s.backend.domain) {
		s.reject("relay_denied")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied",
		}
	}

	publicID := parts[0]
	if _, err := s.backend.links.ResolveByPublicID(publicID); err != nil {
		s.reject("unknown_recipient")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "no such recipient",
		}
	}

	s.publicIDs = append(s.publicIDs, publicID)
	return nil
}

// Data 处理 DATA 命令，邮件正文变成留言内容。
func (s *session) Data(r io.Reader) error {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "malformed message",
		}
	}

	body, err := io.ReadAll(io.LimitReader(msg.Body, 64*1024))
	if err != nil {
		return err
	}

	attribution := domain.Attribution{Email: s.fromAddress}
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		attribution.Name = from.Name
		if attribution.Email == "" {
			attribution.Email = strings.ToLower(from.Address)
		}
	}

	for _, publicID := range s.publicIDs {
		_, err := s.backend.messages.Submit(service.SubmitMessageInput{
			PublicID:    publicID,
			Content:     string(body),
			Attribution: attribution,
		})
		if err != nil {
			s.reject("submit_failed")
			s.backend.log.Warn("smtp投递失败",
				zap.String("from", s.fromAddress),
				zap.Error(err))
			return &gosmtp.SMTPError{
				Code:         554,
				EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
				Message:      "message rejected",
			}
		}

		if s.backend.metrics != nil {
			s.backend.metrics.RecordSMTPReceived()
		}
	}

	return nil
}

// Reset 重置会话状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.publicIDs = nil
}

// Logout 结束会话。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}

func (s *session) reject(reason string) {
	if s.backend.metrics != nil {
		s.backend.metrics.RecordSMTPRejected(reason)
	}
}

// normalizeAddress 规范化发件人地址（去尖括号、转小写）。
// 只用于 MAIL FROM 的身份信息，收件地址不能走这里。
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "<")
	addr = strings.TrimSuffix(addr, ">")
	return strings.ToLower(addr)
}
