package httptransport

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"whisperflow/backend/internal/moderation"
	"whisperflow/backend/internal/monitoring"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/storage"
)

// AdminHandler 管理后台处理器
type AdminHandler struct {
	admin      *service.AdminService
	links      *service.LinkService
	store      storage.Store
	controller *moderation.Controller
	metrics    *monitoring.Metrics

	mu       sync.Mutex
	pendings map[string]*moderation.PendingToggle // pendingId -> 待确认切换
}

// NewAdminHandler 创建管理后台处理器
func NewAdminHandler(
	admin *service.AdminService,
	links *service.LinkService,
	store storage.Store,
	controller *moderation.Controller,
	metrics *monitoring.Metrics,
) *AdminHandler {
	return &AdminHandler{
		admin:      admin,
		links:      links,
		store:      store,
		controller: controller,
		metrics:    metrics,
		pendings:   make(map[string]*moderation.PendingToggle),
	}
}

// GetStatistics godoc
// @Summary 获取系统统计数据
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=domain.SystemStatistics}
// @Router /v1/admin/statistics [get]
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	stats, err := h.admin.GetStatistics()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, stats)
}

// ListLinks godoc
// @Summary 列出全部信箱
// @Description 返回所有信箱（含封禁中的）和各自的留言数
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]service.LinkOverview}
// @Router /v1/admin/links [get]
func (h *AdminHandler) ListLinks(c *gin.Context) {
	Success(c, h.admin.ListLinks())
}

// ToggleLink godoc
// @Summary 翻转信箱的启停状态
// @Description 一步式切换，封禁立即对公开路径生效（幂等安全，重复翻转回到原状态）
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "信箱ID"
// @Success 200 {object} Response{data=domain.Link}
// @Failure 404 {object} Response
// @Router /v1/admin/links/{id}/toggle [post]
func (h *AdminHandler) ToggleLink(c *gin.Context) {
	link, err := h.links.Toggle(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrLinkNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	// 本地视图同步到最新状态
	h.controller.Track(link)

	if h.metrics != nil {
		h.metrics.RecordLinkToggle(!link.IsActive)
	}
	SuccessWithMsg(c, "状态已切换", link)
}

// pendingToggleView 待确认切换的响应体
type pendingToggleView struct {
	PendingID string `json:"pendingId"`
	LinkID    string `json:"linkId"`
	Target    bool   `json:"target"` // 确认后的激活状态
}

// RequestToggle godoc
// @Summary 发起两步式状态切换
// @Description 返回待确认的切换请求。确认前视图不变，多个在途请求以最后确认的为准
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "信箱ID"
// @Success 201 {object} Response{data=pendingToggleView}
// @Failure 404 {object} Response
// @Router /v1/admin/links/{id}/toggle/request [post]
func (h *AdminHandler) RequestToggle(c *gin.Context) {
	link, err := h.links.Get(c.Param("id"))
	if err != nil {
		NotFound(c, GetErrorMessage(storage.ErrLinkNotFound))
		return
	}

	// 先把最新状态纳入视图，pending 基于它计算目标状态
	h.controller.Track(link)

	pending, err := h.controller.RequestToggle(link.ID)
	if err != nil {
		InternalError(c, GetErrorMessage(err))
		return
	}

	pendingID := uuid.NewString()
	h.mu.Lock()
	h.pendings[pendingID] = pending
	h.mu.Unlock()

	Created(c, pendingToggleView{
		PendingID: pendingID,
		LinkID:    pending.LinkID(),
		Target:    pending.Target(),
	})
}

// ConfirmToggle godoc
// @Summary 确认两步式状态切换
// @Description 执行切换。失败时本地视图回滚，已被更新请求取代时返回409
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param pendingId path string true "待确认切换ID"
// @Success 200 {object} Response{data=domain.Link}
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /v1/admin/toggles/{pendingId}/confirm [post]
func (h *AdminHandler) ConfirmToggle(c *gin.Context) {
	pending := h.takePending(c.Param("pendingId"))
	if pending == nil {
		NotFound(c, "切换请求不存在")
		return
	}

	if err := pending.Confirm(); err != nil {
		switch {
		case errors.Is(err, moderation.ErrPendingSuperseded),
			errors.Is(err, moderation.ErrPendingUsed):
			Conflict(c, GetErrorMessage(err))
		case errors.Is(err, moderation.ErrUnknownLink):
			NotFound(c, GetErrorMessage(err))
		default:
			InternalError(c, GetErrorMessage(err))
		}
		return
	}

	link, err := h.links.Get(pending.LinkID())
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	// 切换指标由控制器的结果通知器统一记录，这里不再重复计数
	SuccessWithMsg(c, "状态已切换", link)
}

// CancelToggle godoc
// @Summary 取消两步式状态切换
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param pendingId path string true "待确认切换ID"
// @Success 204 {object} Response
// @Failure 404 {object} Response
// @Router /v1/admin/toggles/{pendingId} [delete]
func (h *AdminHandler) CancelToggle(c *gin.Context) {
	pending := h.takePending(c.Param("pendingId"))
	if pending == nil {
		NotFound(c, "切换请求不存在")
		return
	}

	pending.Cancel()
	NoContent(c)
}

func (h *AdminHandler) takePending(pendingID string) *moderation.PendingToggle {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending, ok := h.pendings[pendingID]
	if !ok {
		return nil
	}
	delete(h.pendings, pendingID)
	return pending
}

// ListMessages godoc
// @Summary 列出全部留言
// @Description 平台治理视图，含发送者身份信息和请求元数据
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]domain.Message}
// @Router /v1/admin/messages [get]
func (h *AdminHandler) ListMessages(c *gin.Context) {
	Success(c, h.store.ListAllMessages())
}

// MessagesBySender godoc
// @Summary 按发送者聚合全部留言
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]service.MessageGroup}
// @Router /v1/admin/messages/by-sender [get]
func (h *AdminHandler) MessagesBySender(c *gin.Context) {
	Success(c, h.admin.GroupMessagesBySender())
}

// MessagesByNickname godoc
// @Summary 按信箱昵称聚合全部留言
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]service.MessageGroup}
// @Router /v1/admin/messages/by-nickname [get]
func (h *AdminHandler) MessagesByNickname(c *gin.Context) {
	Success(c, h.admin.GroupMessagesByNickname())
}

// DeleteMessage godoc
// @Summary 管理员删除留言
// @Description 平台治理用，不受信箱归属限制（幂等）
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "留言ID"
// @Success 204 {object} Response
// @Router /v1/admin/messages/{id} [delete]
func (h *AdminHandler) DeleteMessage(c *gin.Context) {
	if err := h.store.DeleteMessage(c.Param("id")); err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageDeleted()
	}
	NoContent(c)
}
