package domain

import (
	"time"
)

// AccessCode 表示打开收件箱的能力凭证。
// 凭证本身即是唯一的身份证明，持有即可访问对应 handle 的收件箱。
type AccessCode struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code      string    `json:"code" gorm:"type:varchar(32);uniqueIndex"`
	Handle    string    `json:"handle" gorm:"type:varchar(30);index"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Valid 判断凭证在给定时刻是否有效。
// 到达过期时刻的那一瞬间即视为无效（严格早于）。
func (a *AccessCode) Valid(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}
