package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/pkg/apperr"
)

func TestGetPaginationDetails(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
		page   int
	}{
		{"", 10, 0, 1},
		{"?limit=20&page=3", 20, 40, 3},
		{"?limit=500", 100, 0, 1},
		{"?limit=-1&page=0", 10, 0, 1},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
		p := GetPaginationDetails(req)
		assert.Equal(t, tt.limit, p.Limit, tt.query)
		assert.Equal(t, tt.offset, p.Offset, tt.query)
		assert.Equal(t, tt.page, p.Page, tt.query)
	}

	meta := Pagination{Limit: 10, Page: 1}.Meta(25)
	assert.Equal(t, 3, meta["total_pages"])
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Amount string `json:"amount"`
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"valid", "application/json", `{"amount":"10"}`, http.StatusOK},
		{"charset", "application/json; charset=utf-8", `{"amount":"10"}`, http.StatusOK},
		{"unknown field", "application/json", `{"amount":"10","admin":true}`, http.StatusBadRequest},
		{"wrong content type", "text/plain", `{"amount":"10"}`, http.StatusUnsupportedMediaType},
		{"empty body", "application/json", ``, http.StatusBadRequest},
		{"two objects", "application/json", `{"amount":"1"}{"amount":"2"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			var dst payload
			status, _ := DecodeJSONBody(httptest.NewRecorder(), req, &dst)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, apperr.InvalidState("deposit is not pending"))

	assert.Equal(t, http.StatusConflict, rr.Code)

	var body Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "deposit is not pending", body.Message)
	assert.Equal(t, "INVALID_STATE", body.Errors["code"])
}
