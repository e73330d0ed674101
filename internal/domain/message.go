package domain

import "time"

// MaxMessageLength 单条匿名消息的最大长度（字符数）。
const MaxMessageLength = 500

// Message 表示发给某个 handle 的一条匿名消息。
// 发送者不留账号，只记录轻量的环境指纹供收件人参考。
type Message struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RecipientHandle   string    `json:"recipientHandle" gorm:"type:varchar(30);index;not null"`
	Body              string    `json:"body" gorm:"type:varchar(500)"`
	SenderIP          string    `json:"-" gorm:"type:varchar(45)"`
	SenderBrowser     string    `json:"senderBrowser" gorm:"type:varchar(20)"`
	SenderDevice      string    `json:"senderDevice" gorm:"type:varchar(10)"`
	SenderFingerprint string    `json:"senderFingerprint" gorm:"type:varchar(16)"`
	SenderCountry     string    `json:"senderCountry" gorm:"type:varchar(10)"`
	IsRead            bool      `json:"isRead" gorm:"default:false;index"`
	CreatedAt         time.Time `json:"createdAt"`
}
