package cryptodeposit

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/id"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	utils.BuildSuccessResponse(w, http.StatusOK, "Supported assets", SupportedAssets())
}

func (h *Handler) CreateCryptoDeposit(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var in CreateInput
	if status, err := utils.DecodeJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	d, err := h.Service.Create(r.Context(), usr.ID, in)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Deposit address issued", d)
}

func (h *Handler) GetCryptoDeposit(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	depositID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	d, err := h.Service.Get(r.Context(), usr, depositID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Crypto deposit", d)
}

func (h *Handler) ListMyCryptoDeposits(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)
	h.list(w, r, Filter{UserID: &usr.ID})
}

func (h *Handler) AdminListCryptoDeposits(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseFilter(r.URL.Query().Get("status"), lifecycle.StatusConfirmed, lifecycle.StatusRejected)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	h.list(w, r, Filter{Status: status})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	page := utils.GetPaginationDetails(r)
	filter.Limit, filter.Offset = page.Limit, page.Offset

	deposits, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Crypto deposits", map[string]interface{}{
		"deposits": deposits,
		"meta":     page.Meta(total),
	})
}

type StatusRequest struct {
	Status    lifecycle.Status `json:"status"`
	AmountUSD decimal.Decimal  `json:"amount_usd"`
	TxHash    string           `json:"tx_hash"`
	Reason    string           `json:"reason"`
}

// UpdateStatus resolves a pending crypto deposit as confirmed or rejected.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	depositID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var req StatusRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	var d *CryptoDeposit
	switch req.Status {
	case lifecycle.StatusConfirmed:
		d, err = h.Service.Confirm(r.Context(), depositID, admin.ID, ConfirmInput{AmountUSD: req.AmountUSD, TxHash: req.TxHash})
	case lifecycle.StatusRejected:
		d, err = h.Service.Reject(r.Context(), depositID, admin.ID, req.Reason)
	default:
		err = apperr.Validation("status must be confirmed or rejected")
	}
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Crypto deposit "+string(d.Status), d)
}
