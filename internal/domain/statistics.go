package domain

// SystemStats 管理后台统计数据
type SystemStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	ActiveUsers    int64 `json:"activeUsers"`
	TotalMailboxes int64 `json:"totalMailboxes"`
	TotalEmails    int64 `json:"totalEmails"`
}
