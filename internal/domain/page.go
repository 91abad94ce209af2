package domain

import (
	"fmt"
	"math"
)

// Page — срез результатов постраничной выборки.
// Номер страницы начинается с нуля.
type Page[T any] struct {
	Items      []T   `json:"content"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalElements"`
	TotalPages int   `json:"totalPages"`
}

// NewPage собирает страницу и вычисляет общее количество страниц.
func NewPage[T any](items []T, page, size int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if size > 0 && total > 0 {
		totalPages = int((total-1)/int64(size)) + 1
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// Offset переводит номер страницы и её размер в смещение выборки.
// Окно, смещение которого не помещается в int, отклоняется как ErrInvalidArgument.
func Offset(page, size int) (int, error) {
	if page < 0 || size < 1 {
		return 0, fmt.Errorf("%w: page=%d size=%d", ErrInvalidArgument, page, size)
	}
	if page > math.MaxInt/size {
		return 0, fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidArgument, page, size)
	}
	return page * size, nil
}
