package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest 分页参数
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize 修正非法的分页参数
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset 返回数据库查询偏移量
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginated 分页结果
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginated 根据总数计算总页数
func NewPaginated[T any](items []T, total int64, req PageRequest) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.PageSize > 0 {
		totalPages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}
}
