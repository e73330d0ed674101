package domain

// SystemStatistics 系统统计信息
type SystemStatistics struct {
	TotalIdentities   int `json:"totalIdentities"`
	TotalMessages     int `json:"totalMessages"`
	UnreadMessages    int `json:"unreadMessages"`
	ActiveAccessCodes int `json:"activeAccessCodes"`
}
