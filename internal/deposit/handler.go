package deposit

import (
	"mime"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/payment"
	"github.com/zjoart/varlixo/internal/upload"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
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

// CreateDeposit accepts either a JSON body or a multipart form carrying an
// optional proof_of_payment image.
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	var in CreateInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		parsed, err := h.parseMultipart(w, r)
		if err != nil {
			utils.RespondError(w, err)
			return
		}
		in = parsed
	} else if status, err := utils.DecodeJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	d, err := h.Service.Create(r.Context(), usr.ID, in)
	if err != nil {
		if in.ProofOfPayment != "" {
			h.Storage.Remove(upload.AreaDeposits, in.ProofOfPayment)
		}
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusCreated, "Deposit submitted", d)
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (CreateInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		return CreateInput{}, apperr.Validation("invalid multipart form")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		return CreateInput{}, apperr.Validation("amount must be a number")
	}

	in := CreateInput{
		Amount:        amount,
		Currency:      r.FormValue("currency"),
		PaymentMethod: payment.Method(r.FormValue("payment_method")),
		GiftCardCode:  r.FormValue("gift_card_code"),
		TxHash:        r.FormValue("tx_hash"),
		UserNote:      r.FormValue("user_note"),
	}
	if raw := strings.TrimSpace(r.FormValue("amount_crypto")); raw != "" {
		crypto, err := decimal.NewFromString(raw)
		if err != nil {
			return CreateInput{}, apperr.Validation("amount_crypto must be a number")
		}
		in.AmountCrypto = decimal.NewNullDecimal(crypto)
	}

	proof, err := h.Storage.FormImage(r, "proof_of_payment", upload.AreaDeposits, true)
	if err != nil {
		return CreateInput{}, err
	}
	if proof != nil {
		in.ProofOfPayment = proof.Filename
	}
	return in, nil
}

func (h *Handler) ListMyDeposits(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)
	h.list(w, r, Filter{UserID: &usr.ID})
}

func (h *Handler) AdminListDeposits(w http.ResponseWriter, r *http.Request) {
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

	utils.BuildSuccessResponse(w, http.StatusOK, "Deposits", map[string]interface{}{
		"deposits": deposits,
		"meta":     page.Meta(total),
	})
}

func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	depositID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var in ConfirmInput
	if status, err := utils.DecodeOptionalJSONBody(w, r, &in); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	d, err := h.Service.AdminConfirm(r.Context(), depositID, admin.ID, in)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Deposit confirmed", d)
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	depositID, err := id.FromPath(r, "id")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var req RejectRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	d, err := h.Service.AdminReject(r.Context(), depositID, admin.ID, req.Reason)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Deposit rejected", d)
}
