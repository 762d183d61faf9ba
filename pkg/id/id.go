package id

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/zjoart/varlixo/pkg/apperr"
)

func Generate() string {
	return uuid.New().String()
}

// Parse validates a textual id, reporting a validation error naming the field.
func Parse(field, value string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperr.Validation(fmt.Sprintf("%s must be a valid id", field))
	}
	return parsed, nil
}

// FromPath reads and validates a uuid route variable.
func FromPath(r *http.Request, name string) (uuid.UUID, error) {
	return Parse(name, mux.Vars(r)[name])
}
