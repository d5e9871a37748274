package option

import (
	"strings"

	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination: fetch one extra row so the caller
// can detect whether more pages exist.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		limit := page.PageSize
		if limit <= 0 {
			limit = 10
		}
		db = db.Limit(limit + 1)

		token := strings.TrimSpace(page.PageToken)
		if token == "" {
			return db
		}
		cursor, err := pagination.DecodeCursor(token)
		if err != nil || cursor == nil {
			return db
		}
		if cursor.CreatedAt != "" && cursor.ID != "" {
			db = db.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
		return db
	})
}

// QuerySortBy restricts sortable columns to an allow-list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders results by an allow-listed column, newest first by default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		direction := "desc"
		if !sort.Desc && sort.Field != "" {
			direction = "asc"
		}
		return db.Order(field + " " + direction + ", id " + direction)
	})
}
