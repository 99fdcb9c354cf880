package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/auth"
	"github.com/fedutinova/minedash/internal/models"
	"github.com/fedutinova/minedash/internal/validation"
)

type mineralsPage struct {
	page
	Search        string
	Minerals      []models.Mineral
	Insights      []models.Insight
	CanAddInsight bool
	CanExport     bool
}

type countriesPage struct {
	page
	Search        string
	Countries     []models.Country
	Insights      []models.Insight
	CanAddInsight bool
	CanExport     bool
}

func searchQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("search"))
}

func (h *Handlers) minerals(w http.ResponseWriter, r *http.Request) {
	h.renderMinerals(w, r, "")
}

func (h *Handlers) renderMinerals(w http.ResponseWriter, r *http.Request, message string) {
	role := session(r).Role
	search := searchQuery(r)
	data := mineralsPage{
		page:          newPage(r, "Mineral Database"),
		Search:        search,
		Minerals:      h.Store.Minerals(search),
		Insights:      h.Insights.List(models.InsightMineral),
		CanAddInsight: h.Gate.Authorize(role, access.Insights),
		CanExport:     h.Gate.Authorize(role, access.Export),
	}
	data.Message = message
	render(w, http.StatusOK, "minerals.html", data)
}

func (h *Handlers) countries(w http.ResponseWriter, r *http.Request) {
	h.renderCountries(w, r, "")
}

func (h *Handlers) renderCountries(w http.ResponseWriter, r *http.Request, message string) {
	role := session(r).Role
	search := searchQuery(r)
	data := countriesPage{
		page:          newPage(r, "Country Profiles"),
		Search:        search,
		Countries:     h.Store.Countries(search),
		Insights:      h.Insights.List(models.InsightCountry),
		CanAddInsight: h.Gate.Authorize(role, access.Insights),
		CanExport:     h.Gate.Authorize(role, access.Export),
	}
	data.Message = message
	render(w, http.StatusOK, "countries.html", data)
}

func (h *Handlers) addMineralInsight(w http.ResponseWriter, r *http.Request) {
	h.addInsight(w, r, models.InsightMineral, h.renderMinerals)
}

func (h *Handlers) addCountryInsight(w http.ResponseWriter, r *http.Request) {
	h.addInsight(w, r, models.InsightCountry, h.renderCountries)
}

// addInsight is reached only with the page's own capability; the insights
// capability is checked here before anything is stored.
func (h *Handlers) addInsight(w http.ResponseWriter, r *http.Request, kind models.InsightKind, show func(http.ResponseWriter, *http.Request, string)) {
	s := session(r)
	if err := h.Gate.Check(s.Role, access.Insights); err != nil {
		slog.Info("capability denied", "user", s.Username, "role", s.Role, "capability", access.Insights.String(), "path", r.URL.Path, "reason", err)
		http.Redirect(w, r, auth.DashboardPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	f := validation.NewForm(r.PostForm)
	form := validation.InsightForm{Text: f.String("insight")}
	if err := f.Validate(form); err != nil {
		show(w, r, "Insight not added: "+err.Error())
		return
	}
	if _, err := h.Insights.Add(s.Username, kind, form.Text); err != nil {
		show(w, r, "Insight not added: "+err.Error())
		return
	}
	slog.Info("insight added", "user", s.Username, "kind", kind)
	show(w, r, "Insight added.")
}

func (h *Handlers) charts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.Store.Charts(q.Get("mineral"), q.Get("country")))
}

func (h *Handlers) production(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rows": h.Store.Production(),
	})
}

func (h *Handlers) siteMap(w http.ResponseWriter, r *http.Request) {
	view := h.Store.Map(r.URL.Query().Get("mineral"))
	if view.Skipped > 0 {
		slog.Debug("sites skipped for invalid coordinates", "count", view.Skipped)
	}
	writeJSON(w, http.StatusOK, view)
}

