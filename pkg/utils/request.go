package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

const maxJSONBody = 1 << 20

func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return http.StatusUnsupportedMediaType, fmt.Errorf("Content-Type header is not application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body must not exceed %d bytes", maxJSONBody)
		}
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, fmt.Errorf("request body must not be empty")
		}
		return http.StatusBadRequest, err
	}

	if dec.More() {
		return http.StatusBadRequest, fmt.Errorf("request body must contain a single JSON object")
	}

	return http.StatusOK, nil
}

// DecodeOptionalJSONBody is DecodeJSONBody for endpoints whose body may be omitted.
func DecodeOptionalJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return http.StatusOK, nil
	}
	return DecodeJSONBody(w, r, dst)
}
