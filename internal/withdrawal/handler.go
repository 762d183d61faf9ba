package withdrawal

import (
	"net/http"

	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/id"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var in CreateInput
	if status, err := utils.DecodeJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	record, err := h.Service.Create(r.Context(), usr.ID, in)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Withdrawal submitted", record)
}

func (h *Handler) ListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)
	h.list(w, r, Filter{UserID: &usr.ID})
}

func (h *Handler) AdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseFilter(r.URL.Query().Get("status"), lifecycle.StatusApproved, lifecycle.StatusRejected)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	h.list(w, r, Filter{Status: status})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	page := utils.GetPaginationDetails(r)
	filter.Limit, filter.Offset = page.Limit, page.Offset

	withdrawals, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Withdrawals", map[string]interface{}{
		"withdrawals": withdrawals,
		"meta":        page.Meta(total),
	})
}

func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	withdrawalID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	record, err := h.Service.AdminApprove(r.Context(), withdrawalID, admin.ID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Withdrawal approved", record)
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	withdrawalID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var req RejectRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	record, err := h.Service.AdminReject(r.Context(), withdrawalID, admin.ID, req.Reason)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Withdrawal rejected", record)
}
