package utils

import (
	"math"
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Page   int `json:"page"`
}

func GetPaginationDetails(r *http.Request) Pagination {
	limitStr := r.URL.Query().Get("limit")
	limit := 10
	if val, err := strconv.Atoi(limitStr); err == nil && val > 0 {
		limit = val
	}
	if limit > 100 {
		limit = 100
	}

	pageStr := r.URL.Query().Get("page")
	page := 1
	if val, err := strconv.Atoi(pageStr); err == nil && val > 0 {
		page = val
	}

	return Pagination{Limit: limit, Offset: (page - 1) * limit, Page: page}
}

// Meta builds the pagination block returned next to list payloads.
func (p Pagination) Meta(total int64) map[string]interface{} {
	return map[string]interface{}{
		"total_items":  total,
		"total_pages":  int(math.Ceil(float64(total) / float64(p.Limit))),
		"current_page": p.Page,
		"limit":        p.Limit,
	}
}
