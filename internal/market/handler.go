package market

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{Client: client}
}

func intQuery(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (h *Handler) ListCryptos(w http.ResponseWriter, r *http.Request) {
	coins, err := h.Client.Markets(r.Context(), intQuery(r, "limit"))
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Cryptocurrency prices", coins)
}

func (h *Handler) Global(w http.ResponseWriter, r *http.Request) {
	data, err := h.Client.Global(r.Context())
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Global market data", data)
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	items, err := h.Client.Trending(r.Context())
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Trending coins", items)
}

// History serves /market/history/{id}?days=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	points, err := h.Client.History(r.Context(), mux.Vars(r)["id"], intQuery(r, "days"))
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Price history", points)
}

// Convert serves /market/convert?from=btc&to=usd&amount=0.5
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		utils.RespondError(w, apperr.Validation("amount must be a number"))
		return
	}

	result, err := h.Client.Convert(r.Context(), q.Get("from"), q.Get("to"), amount)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	utils.BuildSuccessResponse(w, http.StatusOK, "Conversion", result)
}
