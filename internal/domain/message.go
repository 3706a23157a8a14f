package domain

import "time"

// Attribution 表示发送者的可选身份信息。
//
// 身份信息来自外部身份提供方（黑盒，交付已验证的四元组），
// 本系统只原样记录，不做真实性校验。
type Attribution struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Picture   string `json:"picture,omitempty"`
	SubjectID string `json:"subjectId,omitempty"`
}

// IsZero 判断是否为空的身份信息（完全匿名投递）。
func (a Attribution) IsZero() bool {
	return a.Name == "" && a.Email == "" && a.Picture == "" && a.SubjectID == ""
}

// Message 表示一条匿名留言。
type Message struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	LinkID string `json:"linkId" gorm:"type:varchar(36);index;not null"`
	// Seq 是存储层分配的单调递增序号，用于同一时间戳下的稳定排序，不对外暴露。
	Seq     int64  `json:"-" gorm:"autoIncrement;index"`
	Content string `json:"content" gorm:"type:text;not null"`
	// Nickname 是投递时所属 Link 昵称的冗余拷贝，管理视图无需联表。
	Nickname string `json:"nickname" gorm:"type:varchar(100)"`
	// 发送者身份信息（可选，完成外部身份验证时才有值）
	SenderName      string `json:"senderName,omitempty" gorm:"type:varchar(255)"`
	SenderEmail     string `json:"senderEmail,omitempty" gorm:"type:varchar(255)"`
	SenderPicture   string `json:"senderPicture,omitempty" gorm:"type:varchar(512)"`
	SenderSubjectID string `json:"senderSubjectId,omitempty" gorm:"type:varchar(64);index"`
	// 传输层采集的请求元数据（由调用方传入，本核心不主动采集）
	SenderIP  string    `json:"senderIp,omitempty" gorm:"type:varchar(64)"`
	UserAgent string    `json:"userAgent,omitempty" gorm:"type:varchar(512)"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// Attribution 返回留言携带的发送者身份信息。
func (m *Message) Attribution() Attribution {
	return Attribution{
		Name:      m.SenderName,
		Email:     m.SenderEmail,
		Picture:   m.SenderPicture,
		SubjectID: m.SenderSubjectID,
	}
}
