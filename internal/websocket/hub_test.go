package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
)

type stubResolver struct {
	link *domain.Link
}

func (r *stubResolver) ResolveByInboxID(inboxID string) (*domain.Link, error) {
	if r.link != nil && inboxID == r.link.InboxID {
		return r.link, nil
	}
	return nil, storage.ErrLinkNotFound
}

func TestHubReleaseAfterShutdown(t *testing.T) {
	hub := NewHub(&stubResolver{}, []string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	// Hub 停止后读泵的注销不能永远阻塞
	client := &Client{ID: "c1", linkID: "l1", send: make(chan []byte, 1), hub: hub}
	released := make(chan struct{})
	go func() {
		hub.release(client)
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("client release blocked after hub shutdown")
	}
}

func TestHubReleaseWhileRunning(t *testing.T) {
	hub := NewHub(&stubResolver{}, []string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// 运行中的 Hub 正常消费注销请求，包括从未注册过的客户端
	client := &Client{ID: "c1", linkID: "l1", send: make(chan []byte, 1), hub: hub}
	released := make(chan struct{})
	go func() {
		hub.release(client)
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("client release blocked while hub is running")
	}
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHubNotifyNewMessage(t *testing.T) {
	link := &domain.Link{ID: "l1", InboxID: "inbox-token", Nickname: "小河", IsActive: true}
	hub := NewHub(&stubResolver{link: link}, []string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// 没有订阅者时推送也不能阻塞或崩溃
	hub.NotifyNewMessage(link, &domain.Message{ID: "m1", LinkID: link.ID, Content: "hi"})
	hub.NotifyLinkUpdate(link)

	assert.Equal(t, 0, hub.ConnectionCount())
}
