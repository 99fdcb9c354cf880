package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/dataset"
	"github.com/fedutinova/minedash/internal/job"
	"github.com/fedutinova/minedash/internal/models"
	"github.com/fedutinova/minedash/internal/validation"
)

const recentJobs = 10

type adminPage struct {
	page
	Minerals  []models.Mineral
	Countries []models.Country
	Sites     []models.Site
	Preview   *dataset.MapView
	Jobs      []*job.Job
}

func (h *Handlers) adminPage(w http.ResponseWriter, r *http.Request) {
	h.renderAdmin(w, r, "", nil)
}

func (h *Handlers) renderAdmin(w http.ResponseWriter, r *http.Request, message string, preview *dataset.MapView) {
	data := adminPage{
		page:      newPage(r, "Admin"),
		Minerals:  h.Store.Minerals(""),
		Countries: h.Store.Countries(""),
		Sites:     h.Store.Sites(),
		Preview:   preview,
	}
	if h.Q != nil {
		data.Jobs = h.Q.Recent(recentJobs)
	}
	data.Message = message
	render(w, http.StatusOK, "admin.html", data)
}

// admin applies one edit to the in-memory dataset. The role catalog is never
// touched from here.
func (h *Handlers) admin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f := validation.NewForm(r.PostForm)
	action := f.String("action")

	var (
		message string
		preview *dataset.MapView
		err     error
	)
	switch action {
	case "edit_mineral":
		form := validation.MineralForm{
			Name:        f.String("mineral_name"),
			Description: f.String("description"),
			MarketPrice: f.Float("market_price"),
		}
		if err = f.Validate(form); err == nil {
			err = h.Store.EditMineral(form.Name, form.Description, form.MarketPrice)
		}
		message = outcome(err, "Updated "+form.Name+".")

	case "delete_mineral":
		name := f.String("mineral_name")
		err = h.Store.DeleteMineral(name)
		message = outcome(err, "Deleted "+name+".")

	case "add_country":
		form := validation.CountryForm{
			Name:          f.String("country_name"),
			GDP:           f.Float("gdp"),
			MiningRevenue: f.Float("mining_revenue"),
			KeyProjects:   f.String("key_projects"),
		}
		if err = f.Validate(form); err == nil {
			err = h.Store.AddCountry(models.Country{
				Name:                    form.Name,
				GDPBillionUSD:           form.GDP,
				MiningRevenueBillionUSD: form.MiningRevenue,
				KeyProjects:             form.KeyProjects,
			})
		}
		message = outcome(err, "Added country "+form.Name+".")

	case "delete_country":
		name := f.String("country_name")
		err = h.Store.DeleteCountry(name)
		message = outcome(err, "Deleted country "+name+".")

	case "add_site":
		form := validation.SiteForm{
			Name:       f.String("site_name"),
			Country:    f.String("site_country"),
			Mineral:    f.String("site_mineral"),
			Latitude:   f.Float("latitude"),
			Longitude:  f.Float("longitude"),
			Production: f.Int("production"),
		}
		if err = f.Validate(form); err == nil {
			err = h.Store.AddSite(models.Site{
				Name:             form.Name,
				Country:          form.Country,
				Mineral:          form.Mineral,
				Latitude:         form.Latitude,
				Longitude:        form.Longitude,
				ProductionTonnes: form.Production,
			})
		}
		message = outcome(err, "Added site "+form.Name+".")

	case "delete_site":
		name := f.String("site_name")
		err = h.Store.DeleteSite(name)
		message = outcome(err, "Deleted site "+name+".")

	case "preview_site":
		form := coordsForm(f)
		if err = f.Validate(form); err == nil {
			var view dataset.MapView
			if view, err = dataset.Preview(form.Name, form.Latitude, form.Longitude); err == nil {
				preview = &view
			}
		}
		if err != nil {
			message = "Invalid preview coordinates."
		}

	case "save_site_coords":
		form := coordsForm(f)
		if err = f.Validate(form); err == nil {
			err = h.Store.UpdateSiteCoords(form.Name, form.Latitude, form.Longitude)
		}
		message = outcome(err, "Updated coordinates for "+form.Name+".")

	default:
		err = common.ErrBadRequest
		message = fmt.Sprintf("Unknown action %q.", action)
	}

	s := session(r)
	if err != nil {
		slog.Info("admin action rejected", "user", s.Username, "action", action, "err", err)
	} else {
		slog.Info("admin action applied", "user", s.Username, "action", action)
	}
	h.renderAdmin(w, r, message, preview)
}

func coordsForm(f *validation.Form) validation.CoordsForm {
	return validation.CoordsForm{
		Name:      f.String("site_name_edit"),
		Latitude:  f.Float("edit_latitude"),
		Longitude: f.Float("edit_longitude"),
	}
}

// outcome turns an action error into the message shown on the admin page.
func outcome(err error, success string) string {
	switch {
	case err == nil:
		return success
	case common.IsValidation(err):
		return "Invalid input: " + err.Error()
	case common.IsNotFound(err), common.IsConflict(err):
		return err.Error()
	default:
		return "Action failed."
	}
}
