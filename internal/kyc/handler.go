package kyc

import (
	"net/http"

	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/upload"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/id"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Service *Service
	Storage *upload.Storage
}

func NewHandler(service *Service, storage *upload.Storage) *Handler {
	return &Handler{Service: service, Storage: storage}
}

// Submit takes a multipart form with document_type, document_number and the
// document and selfie images.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	r.Body = http.MaxBytesReader(w, r.Body, 2*upload.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "Invalid multipart form", map[string]string{"error": err.Error()})
		return
	}

	document, err := h.Storage.FormImage(r, "document", upload.AreaKYC, false)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	selfie, err := h.Storage.FormImage(r, "selfie", upload.AreaKYC, false)
	if err != nil {
		h.Storage.Remove(upload.AreaKYC, document.Filename)
		utils.RespondError(w, err)
		return
	}

	sub, err := h.Service.Submit(r.Context(), usr.ID, SubmitInput{
		DocumentType:   DocumentType(r.FormValue("document_type")),
		DocumentNumber: r.FormValue("document_number"),
		DocumentFile:   document.Filename,
		SelfieFile:     selfie.Filename,
	})
	if err != nil {
		h.Storage.Remove(upload.AreaKYC, document.Filename)
		h.Storage.Remove(upload.AreaKYC, selfie.Filename)
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Verification submitted", sub)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	sub, err := h.Service.Latest(r.Context(), usr.ID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Verification status", sub)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseFilter(r.URL.Query().Get("status"), lifecycle.StatusApproved, lifecycle.StatusRejected)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	page := utils.GetPaginationDetails(r)

	subs, total, err := h.Service.List(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Verification requests", map[string]interface{}{
		"submissions": subs,
		"meta":        page.Meta(total),
	})
}

func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	subID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	sub, err := h.Service.Approve(r.Context(), subID, admin.ID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Verification approved", sub)
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	subID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var req RejectRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	sub, err := h.Service.Reject(r.Context(), subID, admin.ID, req.Reason)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Verification rejected", sub)
}
