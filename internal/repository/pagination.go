package repository

import "gorm.io/gorm"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) offset() int { return (p.Page - 1) * p.PageSize }

type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

func normalizePageRequest(req PageRequest) PageRequest {
	if req.Page < 1 {
		req.Page = DefaultPage
	}
	switch {
	case req.PageSize < 1:
		req.PageSize = DefaultPageSize
	case req.PageSize > MaxPageSize:
		req.PageSize = MaxPageSize
	}
	return req
}

func calcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// paginate counts the filtered rows and loads one page of them. The query
// must already carry its Model, filters and ordering.
func paginate[T any](query *gorm.DB, req PageRequest) (PageResult[T], error) {
	req = normalizePageRequest(req)
	out := PageResult[T]{Page: req.Page, PageSize: req.PageSize, Items: []T{}}
	if err := query.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return PageResult[T]{}, err
	}
	if out.Total > int64(req.offset()) {
		if err := query.Session(&gorm.Session{}).Offset(req.offset()).Limit(req.PageSize).Find(&out.Items).Error; err != nil {
			return PageResult[T]{}, err
		}
	}
	out.TotalPages = calcTotalPages(out.Total, req.PageSize)
	out.HasMore = out.Page < out.TotalPages
	return out, nil
}
