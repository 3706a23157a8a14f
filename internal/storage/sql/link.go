package sql

import (
	"database/sql"
	"errors"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
)

// ========== Link Repository ==========

// SaveLink 保存新信箱
//
// 令牌不仅要在各自的列内唯一，还不能撞上对方列里的值，
// 否则同一个字符串会同时具备两种权限。uniqueIndex 只能保证
// 前者，跨列冲突在插入前显式检查。
func (s *Store) SaveLink(link *domain.Link) error {
	var count int
	checkQuery := s.rebind(`
		SELECT COUNT(*) FROM links
		WHERE public_id IN (?, ?) OR inbox_id IN (?, ?)
	`)
	err := s.db.QueryRow(checkQuery,
		link.PublicID, link.InboxID,
		link.PublicID, link.InboxID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrTokenTaken
	}

	insertQuery := s.rebind(`
		INSERT INTO links (id, nickname, public_id, inbox_id, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.Exec(insertQuery,
		link.ID,
		link.Nickname,
		link.PublicID,
		link.InboxID,
		link.CreatedAt,
		link.IsActive,
	)
	if isUniqueViolation(err) {
		// 预检查和插入之间被并发写入抢先，同样视为令牌冲突
		return storage.ErrTokenTaken
	}
	return err
}

// GetLink 根据ID获取信箱
func (s *Store) GetLink(id string) (*domain.Link, error) {
	return s.getLinkBy("id", id)
}

// GetLinkByPublicID 根据公开令牌获取信箱（不过滤激活状态，策略在 service 层）
func (s *Store) GetLinkByPublicID(publicID string) (*domain.Link, error) {
	return s.getLinkBy("public_id", publicID)
}

// GetLinkByInboxID 根据收件令牌获取信箱
func (s *Store) GetLinkByInboxID(inboxID string) (*domain.Link, error) {
	return s.getLinkBy("inbox_id", inboxID)
}

func (s *Store) getLinkBy(column, value string) (*domain.Link, error) {
	query := s.rebind(`
		SELECT id, nickname, public_id, inbox_id, created_at, is_active
		FROM links
		WHERE ` + column + ` = ?
	`)

	var link domain.Link
	err := s.db.QueryRow(query, value).Scan(
		&link.ID,
		&link.Nickname,
		&link.PublicID,
		&link.InboxID,
		&link.CreatedAt,
		&link.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListLinks 列出全部信箱（创建时间倒序）
func (s *Store) ListLinks() []domain.Link {
	query := `
		SELECT id, nickname, public_id, inbox_id, created_at, is_active
		FROM links
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		var link domain.Link
		if err := rows.Scan(
			&link.ID,
			&link.Nickname,
			&link.PublicID,
			&link.InboxID,
			&link.CreatedAt,
			&link.IsActive,
		); err != nil {
			continue
		}
		links = append(links, link)
	}
	return links
}

// SetLinkActive 设置信箱激活状态（幂等），返回更新后的信箱
func (s *Store) SetLinkActive(id string, active bool) (*domain.Link, error) {
	query := s.rebind(`UPDATE links SET is_active = ? WHERE id = ?`)
	if _, err := s.db.Exec(query, active, id); err != nil {
		return nil, err
	}

	// RowsAffected 无法区分"信箱不存在"和"状态本来就相同"
	// （MySQL 不计未变更行），统一回查确认
	return s.getLinkBy("id", id)
}
