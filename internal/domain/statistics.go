package domain

import "time"

// SystemStatistics 系统统计数据（管理后台总览）。
type SystemStatistics struct {
	TotalLinks         int       `json:"totalLinks"`
	ActiveLinks        int       `json:"activeLinks"`
	BlockedLinks       int       `json:"blockedLinks"`
	TotalMessages      int       `json:"totalMessages"`
	AttributedMessages int       `json:"attributedMessages"` // 携带发送者身份的留言数
	MessagesToday      int       `json:"messagesToday"`
	GeneratedAt        time.Time `json:"generatedAt"`
}
