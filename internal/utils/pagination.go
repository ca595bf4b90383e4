// internal/utils/pagination.go
package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxPageSize = 100

type PaginationParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Sort   string `json:"sort"`
	Search string `json:"search"`
}

type PaginationResult struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
	Data       interface{} `json:"data"`
}

// GetPaginationParams reads page, limit, sort and q/search from the query
// string. Malformed or out-of-range values fall back to defaults.
func GetPaginationParams(c *gin.Context, defaultLimit int) PaginationParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultLimit
	}

	search := c.Query("q")
	if search == "" {
		search = c.Query("search")
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Sort:   c.Query("sort"),
		Search: search,
	}
}

// ClampPage moves an out-of-range page onto the last page that has rows.
func (p *PaginationParams) ClampPage(total int64) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	last := totalPages(total, p.Limit)
	if last > 0 && p.Page > last {
		p.Page = last
	}
	if last == 0 {
		p.Page = 1
	}
}

// Normalize fills in a missing page or limit, for callers that build params
// outside a request.
func (p *PaginationParams) Normalize(defaultLimit int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > maxPageSize {
		p.Limit = defaultLimit
	}
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	offset := (params.Page - 1) * params.Limit
	return db.Offset(offset).Limit(params.Limit)
}

// SortOption maps a public sort key to an ORDER BY expression.
type SortOption map[string]string

// ApplySort orders by the expression registered for params.Sort, falling
// back to fallbackKey when the key is not in the allow-list.
func ApplySort(db *gorm.DB, params PaginationParams, allowed SortOption, fallbackKey string) *gorm.DB {
	expr, ok := allowed[params.Sort]
	if !ok {
		expr = allowed[fallbackKey]
	}
	return db.Order(expr)
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	return PaginationResult{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages(total, params.Limit),
		Data:       data,
	}
}

func totalPages(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
}
