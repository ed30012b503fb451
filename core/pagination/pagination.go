// Package pagination 统一的分页参数与返回结构
package pagination

import (
	"math"
	"strconv"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Params 已经过校正的分页参数
type Params struct {
	Page int
	Size int
}

// New 校正页码和每页数量：非正数回落到默认值，每页最多 MaxSize 条。
// 页码上限保证 Offset 不溢出，超出范围的页依旧是空页。
func New(page, size int) Params {
	if page <= 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	if limit := math.MaxInt / size; page > limit {
		page = limit
	}
	return Params{Page: page, Size: size}
}

// Parse 从查询字符串解析，非数字按默认值处理
func Parse(page, size string) Params {
	p, err := strconv.Atoi(page)
	if err != nil {
		p = 0
	}
	s, err := strconv.Atoi(size)
	if err != nil {
		s = 0
	}
	return New(p, s)
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// TotalPages = ceil(total / size)
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}
	return int(pages)
}

// Page 分页响应，Items 永远不为 nil
type Page[T any] struct {
	Items       []T `json:"items"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

func NewPage[T any](items []T, total int64, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		TotalPages:  TotalPages(total, p.Size),
		CurrentPage: p.Page,
	}
}

// Empty 空页
func Empty[T any](p Params) Page[T] {
	return NewPage[T](nil, 0, p)
}
