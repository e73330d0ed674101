package domain

import (
	"time"
)

// Identity 表示一个已认领的 Instagram 主页身份。
type Identity struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Handle        string     `json:"handle" gorm:"type:varchar(30);uniqueIndex"`
	ProfileURL    string     `json:"profileUrl" gorm:"type:varchar(255)"`
	MessageCount  int        `json:"messageCount"` // 累计收到的消息数量（允许轻微漂移）
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}
