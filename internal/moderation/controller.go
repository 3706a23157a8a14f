// Package moderation 实现信箱启停切换的乐观更新协议。
//
// 管理视图先在本地翻转状态再等待存储确认，确认失败时回滚到
// 之前的状态。同一信箱允许多个在途切换，以最后确认的意图为准，
// 过期的在途结果直接丢弃。
package moderation

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
)

var (
	// ErrUnknownLink 本地视图中没有该信箱
	ErrUnknownLink = errors.New("link not in view")
	// ErrPendingUsed 待确认切换已被消费（确认和取消都只允许一次）
	ErrPendingUsed = errors.New("pending toggle already used")
	// ErrPendingSuperseded 待确认切换已过期（创建后视图被别的切换改动过）
	ErrPendingSuperseded = errors.New("pending toggle superseded")
)

// Toggler 执行真正的状态切换（通常是 LinkService）。
type Toggler interface {
	SetActive(id string, active bool) (*domain.Link, error)
}

// Notifier 接收切换结果通知（界面提示等），可以为 nil。
type Notifier interface {
	ToggleSucceeded(link *domain.Link)
	ToggleFailed(linkID string, intended bool, err error)
}

// Controller 维护信箱激活状态的本地乐观视图。
type Controller struct {
	mu       sync.Mutex
	toggler  Toggler
	notifier Notifier
	logger   *zap.Logger

	view map[string]bool   // linkID -> 本地视图中的激活状态
	gen  map[string]uint64 // linkID -> 确认代数，用于丢弃过期的在途结果
}

// NewController 创建切换控制器。
func NewController(toggler Toggler, logger *zap.Logger) *Controller {
	return &Controller{
		toggler: toggler,
		logger:  logger,
		view:    make(map[string]bool),
		gen:     make(map[string]uint64),
	}
}

// SetNotifier 设置结果通知器。
func (c *Controller) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

// Load 用存储中的信箱列表初始化（或刷新）本地视图。
func (c *Controller) Load(links []domain.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, link := range links {
		c.view[link.ID] = link.IsActive
	}
}

// Track 把单个信箱纳入本地视图。
func (c *Controller) Track(link *domain.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view[link.ID] = link.IsActive
}

// View 返回信箱在本地视图中的激活状态。
func (c *Controller) View(linkID string) (active bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	active, ok = c.view[linkID]
	return active, ok
}

// PendingToggle 是一次待确认的状态切换。
//
// 创建后视图不变，调用 Confirm 才生效，调用 Cancel 则放弃。
// 两者都只允许调用一次。
type PendingToggle struct {
	controller *Controller
	linkID     string
	from       bool // 创建时视图中的状态
	target     bool
	used       bool
}

// LinkID 返回待切换的信箱ID。
func (p *PendingToggle) LinkID() string { return p.linkID }

// Target 返回切换的目标状态。
func (p *PendingToggle) Target() bool { return p.target }

// RequestToggle 发起一次状态切换，返回待确认的切换对象。
//
// 目标状态取发起时本地视图的反面。视图在确认前被其他切换
// 改动时，该对象过期，Confirm 返回 ErrPendingSuperseded。
func (c *Controller) RequestToggle(linkID string) (*PendingToggle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.view[linkID]
	if !ok {
		return nil, ErrUnknownLink
	}

	return &PendingToggle{
		controller: c,
		linkID:     linkID,
		from:       current,
		target:     !current,
	}, nil
}

// Cancel 放弃切换，视图保持不变。
func (p *PendingToggle) Cancel() {
	c := p.controller
	c.mu.Lock()
	defer c.mu.Unlock()
	p.used = true
}

// Confirm 确认切换：先乐观翻转本地视图，再同步执行切换。
//
// 切换失败时回滚视图并通知失败；执行期间有更新的切换被确认时，
// 本次结果作废，既不回滚也不覆盖（最后确认的意图获胜）。
func (p *PendingToggle) Confirm() error {
	c := p.controller

	c.mu.Lock()
	if p.used {
		c.mu.Unlock()
		return ErrPendingUsed
	}
	p.used = true

	current, ok := c.view[p.linkID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownLink
	}
	if current != p.from {
		// 创建后视图已被别的切换改动，本次意图作废
		c.mu.Unlock()
		return ErrPendingSuperseded
	}

	// 乐观翻转，界面立即看到新状态
	c.view[p.linkID] = p.target
	c.gen[p.linkID]++
	myGen := c.gen[p.linkID]
	c.mu.Unlock()

	// 切换调用在锁外执行，期间允许新的切换入场
	link, err := c.toggler.SetActive(p.linkID, p.target)

	c.mu.Lock()
	stale := c.gen[p.linkID] != myGen
	if stale {
		// 已有更新的确认，结果作废，成功失败都不再处理
		c.mu.Unlock()
		c.logger.Debug("丢弃过期的切换结果",
			zap.String("link_id", p.linkID),
			zap.Bool("target", p.target))
		return nil
	}

	if err != nil {
		// 回滚到翻转前的状态
		c.view[p.linkID] = p.from
		c.mu.Unlock()

		c.logger.Warn("状态切换失败，已回滚",
			zap.String("link_id", p.linkID),
			zap.Bool("target", p.target),
			zap.Error(err))
		if c.notifier != nil {
			c.notifier.ToggleFailed(p.linkID, p.target, err)
		}
		return err
	}

	// 以存储返回的权威状态校准视图
	c.view[p.linkID] = link.IsActive
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.ToggleSucceeded(link)
	}
	return nil
}
