package wallet

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/id"
	"github.com/zjoart/varlixo/pkg/logger"
	"github.com/zjoart/varlixo/pkg/utils"
)

// Users resolves the owner of a wallet before an admin credit.
type Users interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Handler struct {
	Repo      Repository
	Processor *Processor
	Users     Users
}

func NewHandler(repo Repository, processor *Processor, users Users) *Handler {
	return &Handler{Repo: repo, Processor: processor, Users: users}
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	wallet, err := h.Processor.EnsureWallet(r.Context(), usr.ID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet details", wallet)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	wallet, err := h.Repo.GetWalletByUserID(r.Context(), usr.ID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	page := utils.GetPaginationDetails(r)

	txs, err := h.Repo.GetTransactions(r.Context(), wallet.ID, page.Limit, page.Offset)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch transactions", nil)
		return
	}

	count, _ := h.Repo.CountTransactions(r.Context(), wallet.ID)

	utils.BuildSuccessResponse(w, http.StatusOK, "Transaction history", map[string]interface{}{
		"transactions": txs,
		"meta":         page.Meta(count),
	})
}

type CreditRequest struct {
	Kind        EventKind       `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// AdminCredit credits an existing user's wallet, creating the wallet on
// first credit.
func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	admin, _ := r.Context().Value(utils.UserKey).(user.User)

	userID, err := id.FromPath(r, "userId")
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	var req CreditRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.Kind == EventWithdrawalApproved || !req.Kind.Valid() {
		utils.RespondError(w, apperr.Validation("kind must be deposit_confirmed, profit_accrued or referral_bonus"))
		return
	}
	if err := ValidateAmount(req.Amount); err != nil {
		utils.RespondError(w, err)
		return
	}

	if _, err := h.Users.FindByID(r.Context(), userID); err != nil {
		utils.RespondError(w, err)
		return
	}

	wallet, err := h.Processor.EnsureWallet(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Admin credit (%s)", req.Kind)
	}

	updated, record, err := h.Processor.ApplyEvent(r.Context(), wallet.ID, req.Kind, req.Amount, EventMeta{
		SourceType:  SourceAdmin,
		SourceID:    &admin.ID,
		Description: description,
	})
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	logger.Info("Admin credited wallet", logger.Fields{
		logger.AdminIdKey: admin.ID.String(),
		logger.UserIdKey:  userID.String(),
		"kind":            req.Kind,
		"amount":          req.Amount.String(),
	})

	utils.BuildSuccessResponse(w, http.StatusOK, "Wallet credited", map[string]interface{}{
		"wallet":      updated,
		"transaction": record,
	})
}
