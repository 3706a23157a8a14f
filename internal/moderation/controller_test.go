package moderation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
)

// fakeToggler 可编程的切换后端。
type fakeToggler struct {
	mu      sync.Mutex
	state   map[string]bool
	failure error
	// 不为 nil 时，SetActive 会阻塞到该通道关闭，用于模拟慢请求
	block chan struct{}
	calls int
}

func newFakeToggler() *fakeToggler {
	return &fakeToggler{state: map[string]bool{}}
}

func (f *fakeToggler) SetActive(id string, active bool) (*domain.Link, error) {
	f.mu.Lock()
	block := f.block
	f.calls++
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	f.state[id] = active
	return &domain.Link{ID: id, IsActive: active}, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	succeeded []string
	failed    []string
}

func (n *recordingNotifier) ToggleSucceeded(link *domain.Link) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, link.ID)
}

func (n *recordingNotifier) ToggleFailed(linkID string, intended bool, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, linkID)
}

func newTestController(toggler Toggler) *Controller {
	c := NewController(toggler, zap.NewNop())
	c.Load([]domain.Link{{ID: "link-1", IsActive: true}})
	return c
}

func TestControllerView(t *testing.T) {
	c := newTestController(newFakeToggler())

	active, ok := c.View("link-1")
	assert.True(t, ok)
	assert.True(t, active)

	_, ok = c.View("missing")
	assert.False(t, ok)
}

func TestRequestToggle(t *testing.T) {
	t.Run("目标状态是当前视图的反面", func(t *testing.T) {
		c := newTestController(newFakeToggler())

		pending, err := c.RequestToggle("link-1")

		require.NoError(t, err)
		assert.Equal(t, "link-1", pending.LinkID())
		assert.False(t, pending.Target())

		// 仅发起不改变视图
		active, _ := c.View("link-1")
		assert.True(t, active)
	})

	t.Run("未知信箱报错", func(t *testing.T) {
		c := newTestController(newFakeToggler())

		_, err := c.RequestToggle("missing")
		assert.ErrorIs(t, err, ErrUnknownLink)
	})
}

func TestConfirmSuccess(t *testing.T) {
	toggler := newFakeToggler()
	notifier := &recordingNotifier{}
	c := newTestController(toggler)
	c.SetNotifier(notifier)

	pending, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	require.NoError(t, pending.Confirm())

	active, _ := c.View("link-1")
	assert.False(t, active)
	assert.False(t, toggler.state["link-1"])
	assert.Equal(t, []string{"link-1"}, notifier.succeeded)
	assert.Empty(t, notifier.failed)
}

func TestConfirmRollback(t *testing.T) {
	toggler := newFakeToggler()
	toggler.failure = errors.New("storage down")
	notifier := &recordingNotifier{}
	c := newTestController(toggler)
	c.SetNotifier(notifier)

	pending, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	err = pending.Confirm()
	assert.Error(t, err)

	// 失败后视图回到切换前的状态
	active, _ := c.View("link-1")
	assert.True(t, active)
	assert.Equal(t, []string{"link-1"}, notifier.failed)
	assert.Empty(t, notifier.succeeded)
}

func TestConfirmSingleUse(t *testing.T) {
	c := newTestController(newFakeToggler())

	pending, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	require.NoError(t, pending.Confirm())
	assert.ErrorIs(t, pending.Confirm(), ErrPendingUsed)
}

func TestCancel(t *testing.T) {
	toggler := newFakeToggler()
	c := newTestController(toggler)

	pending, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	pending.Cancel()

	// 取消后视图不变，后端没有被调用
	active, _ := c.View("link-1")
	assert.True(t, active)
	assert.Equal(t, 0, toggler.calls)

	// 取消后不允许再确认
	assert.ErrorIs(t, pending.Confirm(), ErrPendingUsed)
}

func TestConfirmSuperseded(t *testing.T) {
	c := newTestController(newFakeToggler())

	// 两个基于同一视图的切换，先确认的获胜
	first, err := c.RequestToggle("link-1")
	require.NoError(t, err)
	second, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	require.NoError(t, first.Confirm())
	assert.ErrorIs(t, second.Confirm(), ErrPendingSuperseded)

	active, _ := c.View("link-1")
	assert.False(t, active)
}

func TestLastConfirmedIntentWins(t *testing.T) {
	toggler := newFakeToggler()
	release := make(chan struct{})
	toggler.block = release
	c := newTestController(toggler)

	// 第一次切换（true -> false）在后端慢请求中挂起
	first, err := c.RequestToggle("link-1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- first.Confirm()
	}()

	// 等第一次切换完成乐观翻转
	require.Eventually(t, func() bool {
		active, _ := c.View("link-1")
		return !active
	}, time.Second, time.Millisecond)

	// 放行后续请求，基于翻转后的视图发起第二次切换（false -> true）
	toggler.mu.Lock()
	toggler.block = nil
	toggler.mu.Unlock()

	second, err := c.RequestToggle("link-1")
	require.NoError(t, err)
	require.True(t, second.Target())
	require.NoError(t, second.Confirm())

	// 放行第一次切换挂起的后端调用
	close(release)
	require.NoError(t, <-firstDone)

	// 第一次切换的结果已过期，最终视图保持第二次的意图
	active, _ := c.View("link-1")
	assert.True(t, active)
}
