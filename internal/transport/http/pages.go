package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/auth"
	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/dataset"
	"github.com/fedutinova/minedash/internal/validation"
)

// page carries the fields every template header reads.
type page struct {
	Title   string
	User    string
	Role    string
	Message string
}

func newPage(r *http.Request, title string) page {
	p := page{Title: title}
	if s, ok := auth.FromContext(r.Context()); ok {
		p.User = s.Username
		p.Role = s.Role
	}
	return p
}

// featurePaths is where each capability's feature lives, in dashboard order.
var featurePaths = []struct {
	Capability access.Capability
	Path       string
}{
	{access.Database, "/minerals"},
	{access.Profiles, "/countries"},
	{access.Charts, "/charts"},
	{access.Production, "/production"},
	{access.Map, "/map"},
	{access.Export, "/exports/minerals.csv"},
}

type feature struct {
	Name string
	Path string
}

type dashboardPage struct {
	page
	Counts   dataset.Counts
	Features []feature
	IsAdmin  bool
}

type loginPage struct {
	page
	Error    string
	Username string
}

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, auth.DashboardPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (h *Handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, auth.DashboardPath, http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, "login.html", loginPage{page: page{Title: "Log in"}})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f := validation.NewForm(r.PostForm)
	form := validation.LoginForm{
		Username: f.String("username"),
		Password: r.PostForm.Get("password"),
	}
	data := loginPage{page: page{Title: "Log in"}, Username: form.Username}

	if err := f.Validate(form); err != nil {
		data.Error = "Username and password are required."
		render(w, http.StatusBadRequest, "login.html", data)
		return
	}

	id, err := h.Directory.Authenticate(form.Username, form.Password)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidCredentials) {
			slog.Error("authenticate", "error", err)
		}
		slog.Warn("login attempt with invalid credentials", "user", form.Username)
		data.Error = "Invalid credentials. Try again."
		render(w, http.StatusUnauthorized, "login.html", data)
		return
	}

	token, sess, err := auth.NewSessionToken(h.Config.SessionSecret, h.Config.SessionIssuer, id.Username, id.Role, h.Config.SessionTTL)
	if err != nil {
		slog.Error("failed to create session token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	auth.SetSessionCookie(w, token, sess.ExpiresAt, h.Config.CookieSecure)
	slog.Info("user logged in", "user", id.Username, "role", id.Role, "session_id", sess.ID)

	http.Redirect(w, r, auth.DashboardPath+"?success="+url.QueryEscape("Login successful!"), http.StatusSeeOther)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := auth.FromContext(r.Context()); ok && h.Revoker != nil {
		if err := h.Revoker.RevokeSession(r.Context(), s.ID, time.Until(s.ExpiresAt)); err != nil {
			slog.Error("failed to revoke session", "session_id", s.ID, "error", err)
		} else {
			slog.Info("user logged out", "user", s.Username, "session_id", s.ID)
		}
	}
	auth.ClearSessionCookie(w, h.Config.CookieSecure)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	data := dashboardPage{
		page:    newPage(r, "Dashboard"),
		Counts:  h.Store.Counts(),
		IsAdmin: h.Gate.Authorize(s.Role, access.All),
	}
	data.Message = r.URL.Query().Get("success")
	for _, fp := range featurePaths {
		if h.Gate.Authorize(s.Role, fp.Capability) {
			data.Features = append(data.Features, feature{Name: fp.Capability.String(), Path: fp.Path})
		}
	}
	render(w, http.StatusOK, "dashboard.html", data)
}
