package upload

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/logger"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Storage *Storage
}

func NewHandler(storage *Storage) *Handler {
	return &Handler{Storage: storage}
}

// UploadImage accepts a multipart "file" field for the given area.
func (h *Handler) UploadImage(area Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usr, _ := r.Context().Value(utils.UserKey).(user.User)

		r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+(1<<20))
		if err := r.ParseMultipartForm(MaxImageSize); err != nil {
			utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid multipart upload", map[string]string{"error": err.Error()})
			return
		}

		stored, err := h.Storage.FormImage(r, "file", area, false)
		if err != nil {
			utils.RespondError(w, err)
			return
		}

		logger.Info("File uploaded", logger.Fields{
			logger.UserIdKey: usr.ID.String(),
			"area":           area,
			"filename":       stored.Filename,
			"size":           stored.Size,
		})

		utils.BuildSuccessResponse(w, http.StatusCreated, "File uploaded", stored)
	}
}

// Serve streams a stored file or answers 404 when it does not exist.
func (h *Handler) Serve(area Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := h.Storage.Path(area, mux.Vars(r)["filename"])
		if err != nil {
			utils.RespondError(w, err)
			return
		}

		w.Header().Set("Cache-Control", "private, max-age=86400")
		http.ServeFile(w, r, path)
	}
}
