package utils

import (
	"encoding/json"
	"net/http"

	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/logger"
)

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func BuildSuccessResponse(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Status: "success", Message: message, Data: data})
}

func BuildErrorResponse(w http.ResponseWriter, status int, message string, errs map[string]string) {
	writeJSON(w, status, Response{Status: "error", Message: message, Errors: errs})
}

// RespondError maps a service error onto the HTTP taxonomy. Unknown errors are
// logged and reported as a generic 500.
func RespondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled error", logger.WithError(err))
	}
	BuildErrorResponse(w, status, apperr.MessageOf(err), map[string]string{"code": string(apperr.KindOf(err))})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", logger.WithError(err))
	}
}
