package utils

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination 列表查询参数，商品/订单/流水/用户共用
type Pagination struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
}

// Normalize 修正非法的 page/limit，handler 回显前调用
func (p *Pagination) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
}

// GetPageOffset 返回 offset 和 limit
func (p *Pagination) GetPageOffset() (int, int) {
	p.Normalize()
	return (p.Page - 1) * p.Limit, p.Limit
}

// TotalPages limit 需已修正
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
