package sql

import (
	"database/sql"

	"whisperflow/backend/internal/domain"
)

// ========== Message Repository ==========

// SaveMessage 保存留言
//
// seq 列由数据库自增填充，保证同一时间戳下留言的稳定次序。
func (s *Store) SaveMessage(message *domain.Message) error {
	// 先确认所属信箱存在，孤儿留言直接拒绝
	if _, err := s.getLinkBy("id", message.LinkID); err != nil {
		return err
	}

	query := s.rebind(`
		INSERT INTO messages (id, link_id, content, nickname,
		                      sender_name, sender_email, sender_picture, sender_subject_id,
		                      sender_ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		message.ID,
		message.LinkID,
		message.Content,
		message.Nickname,
		message.SenderName,
		message.SenderEmail,
		message.SenderPicture,
		message.SenderSubjectID,
		message.SenderIP,
		message.UserAgent,
		message.CreatedAt,
	)
	return err
}

// ListMessages 获取指定信箱的全部留言（新的在前，同一时间戳按入库次序）
func (s *Store) ListMessages(linkID string) ([]domain.Message, error) {
	// 先区分"信箱不存在"和"信箱为空"
	if _, err := s.getLinkBy("id", linkID); err != nil {
		return nil, err
	}

	query := s.rebind(`
		SELECT id, link_id, seq, content, nickname,
		       sender_name, sender_email, sender_picture, sender_subject_id,
		       sender_ip, user_agent, created_at
		FROM messages
		WHERE link_id = ?
		ORDER BY created_at DESC, seq ASC
	`)
	rows, err := s.db.Query(query, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListAllMessages 获取全部留言（管理后台聚合视图使用）
func (s *Store) ListAllMessages() []domain.Message {
	query := `
		SELECT id, link_id, seq, content, nickname,
		       sender_name, sender_email, sender_picture, sender_subject_id,
		       sender_ip, user_agent, created_at
		FROM messages
		ORDER BY created_at DESC, seq ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil
	}
	return messages
}

// DeleteMessage 删除留言（幂等，留言不存在不报错）
func (s *Store) DeleteMessage(messageID string) error {
	query := s.rebind(`DELETE FROM messages WHERE id = ?`)
	_, err := s.db.Exec(query, messageID)
	return err
}

// CountMessages 统计指定信箱的留言数
func (s *Store) CountMessages(linkID string) (int, error) {
	if _, err := s.getLinkBy("id", linkID); err != nil {
		return 0, err
	}

	query := s.rebind(`SELECT COUNT(*) FROM messages WHERE link_id = ?`)
	var count int
	if err := s.db.QueryRow(query, linkID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.LinkID,
			&m.Seq,
			&m.Content,
			&m.Nickname,
			&m.SenderName,
			&m.SenderEmail,
			&m.SenderPicture,
			&m.SenderSubjectID,
			&m.SenderIP,
			&m.UserAgent,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ========== Admin Repository ==========

// GetSystemStatistics 生成系统统计数据
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	stats := &domain.SystemStatistics{GeneratedAt: nowUTC()}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&stats.TotalLinks)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(s.rebind(`SELECT COUNT(*) FROM links WHERE is_active = ?`), true).
		Scan(&stats.ActiveLinks)
	if err != nil {
		return nil, err
	}
	stats.BlockedLinks = stats.TotalLinks - stats.ActiveLinks

	err = s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&stats.TotalMessages)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE sender_name <> '' OR sender_email <> '' OR sender_picture <> '' OR sender_subject_id <> ''
	`).Scan(&stats.AttributedMessages)
	if err != nil {
		return nil, err
	}

	startOfDay := startOfTodayUTC()
	err = s.db.QueryRow(s.rebind(`SELECT COUNT(*) FROM messages WHERE created_at >= ?`), startOfDay).
		Scan(&stats.MessagesToday)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
