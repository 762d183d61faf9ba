package plan

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/utils"
)

type Handler struct {
	Repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{Repo: repo}
}

func countryParam(r *http.Request) (string, error) {
	country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
	if country != "" && len(country) != 2 {
		return "", apperr.Validation("country must be an ISO 3166 alpha-2 code")
	}
	return country, nil
}

// ListPlans returns the active plans, priced for ?country= when given.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	country, err := countryParam(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	plans, err := h.Repo.List(r.Context(), true)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	views := make([]View, 0, len(plans))
	for _, p := range plans {
		views = append(views, p.ForCountry(country))
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Investment plans", views)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	country, err := countryParam(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	p, err := h.Repo.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	if !p.IsActive {
		utils.RespondError(w, ErrPlanNotFound)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Investment plan", p.ForCountry(country))
}
