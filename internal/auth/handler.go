package auth

import (
	"net/http"

	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if status, err := utils.DecodeJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	session, err := h.Service.Register(r.Context(), in)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Registration successful", session)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if status, err := utils.DecodeJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	session, err := h.Service.Login(r.Context(), in)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Login successful", session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	usr := r.Context().Value(utils.UserKey).(user.User)
	utils.BuildSuccessResponse(w, http.StatusOK, "Current user", usr)
}
