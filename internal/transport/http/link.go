package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/monitoring"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/storage"
)

// LinkHandler 信箱与留言处理器（能力令牌路径，无需账号）
type LinkHandler struct {
	links    *service.LinkService
	messages *service.MessageService
	metrics  *monitoring.Metrics
}

// NewLinkHandler 创建信箱处理器
func NewLinkHandler(links *service.LinkService, messages *service.MessageService, metrics *monitoring.Metrics) *LinkHandler {
	return &LinkHandler{
		links:    links,
		messages: messages,
		metrics:  metrics,
	}
}

// createLinkRequest 创建信箱请求体
type createLinkRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// CreateLink godoc
// @Summary 创建匿名信箱
// @Description 创建新信箱并返回两个能力令牌。inboxId 只在这里返回一次，请妥善保存
// @Tags Link
// @Accept json
// @Produce json
// @Param request body createLinkRequest true "信箱信息"
// @Success 201 {object} Response{data=domain.Link}
// @Router /v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	link, err := h.links.Create(service.CreateLinkInput{Nickname: req.Nickname})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNicknameEmpty), errors.Is(err, domain.ErrNicknameTooLong):
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, GetErrorMessage(err))
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLinkCreated()
	}
	Created(c, link)
}

// publicLinkView 公开路径返回的信箱视图，绝不包含 inboxId
type publicLinkView struct {
	Nickname string `json:"nickname"`
	PublicID string `json:"publicId"`
	IsActive bool   `json:"isActive"`
}

// GetPublicLink godoc
// @Summary 通过公开令牌查看信箱
// @Description 投递页面用来展示信箱昵称。已封禁的信箱返回404，与不存在的信箱不可区分
// @Tags Link
// @Produce json
// @Param publicId path string true "公开令牌"
// @Success 200 {object} Response{data=publicLinkView}
// @Failure 404 {object} Response
// @Router /v1/links/public/{publicId} [get]
func (h *LinkHandler) GetPublicLink(c *gin.Context) {
	link, err := h.links.ResolveByPublicID(c.Param("publicId"))
	if err != nil {
		NotFound(c, GetErrorMessage(storage.ErrLinkNotFound))
		return
	}

	Success(c, publicLinkView{
		Nickname: link.Nickname,
		PublicID: link.PublicID,
		IsActive: link.IsActive,
	})
}

// submitMessageRequest 投递留言请求体
type submitMessageRequest struct {
	Content     string             `json:"content" binding:"required"`
	Attribution domain.Attribution `json:"attribution"`
}

// SubmitMessage godoc
// @Summary 通过公开令牌投递留言
// @Description 向信箱投递一条留言，身份信息可选。信箱不存在或已封禁都返回404
// @Tags Link
// @Accept json
// @Produce json
// @Param publicId path string true "公开令牌"
// @Param request body submitMessageRequest true "留言内容"
// @Success 201 {object} Response{data=domain.Message}
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Router /v1/links/public/{publicId}/messages [post]
func (h *LinkHandler) SubmitMessage(c *gin.Context) {
	var req submitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	message, err := h.messages.Submit(service.SubmitMessageInput{
		PublicID:    c.Param("publicId"),
		Content:     req.Content,
		Attribution: req.Attribution,
		SenderIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrLinkNotFound):
			if h.metrics != nil {
				h.metrics.RecordMessageRejected("link_not_found")
			}
			NotFound(c, GetErrorMessage(storage.ErrLinkNotFound))
		case errors.Is(err, domain.ErrContentEmpty), errors.Is(err, domain.ErrContentTooLong):
			if h.metrics != nil {
				h.metrics.RecordMessageRejected("invalid_content")
			}
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, GetErrorMessage(err))
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageSubmitted(!message.Attribution().IsZero())
	}
	Created(c, message)
}

// GetInbox godoc
// @Summary 通过收件令牌读取收件箱
// @Description 返回信箱信息和全部留言（新的在前）。封禁中的信箱同样可以读取
// @Tags Inbox
// @Produce json
// @Param inboxId path string true "收件令牌"
// @Success 200 {object} Response{data=service.InboxView}
// @Failure 404 {object} Response
// @Router /v1/links/inbox/{inboxId} [get]
func (h *LinkHandler) GetInbox(c *gin.Context) {
	view, err := h.messages.GetInbox(c.Param("inboxId"))
	if err != nil {
		NotFound(c, GetErrorMessage(storage.ErrLinkNotFound))
		return
	}

	Success(c, view)
}

// DeleteMessage godoc
// @Summary 通过收件令牌删除留言
// @Description 删除自己信箱里的一条留言（幂等）
// @Tags Inbox
// @Produce json
// @Param inboxId path string true "收件令牌"
// @Param messageId path string true "留言ID"
// @Success 204 {object} Response
// @Failure 404 {object} Response
// @Router /v1/links/inbox/{inboxId}/messages/{messageId} [delete]
func (h *LinkHandler) DeleteMessage(c *gin.Context) {
	err := h.messages.Delete(c.Param("inboxId"), c.Param("messageId"))
	if err != nil {
		if errors.Is(err, storage.ErrLinkNotFound) {
			NotFound(c, GetErrorMessage(storage.ErrLinkNotFound))
			return
		}
		InternalError(c, GetErrorMessage(err))
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageDeleted()
	}
	NoContent(c)
}
