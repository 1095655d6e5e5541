// Package server is the local web UI over an app.Session.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/newsdesk/internal/app"
	"github.com/TobiSchelling/newsdesk/internal/auth"
	"github.com/TobiSchelling/newsdesk/internal/news"
	"github.com/TobiSchelling/newsdesk/internal/preferences"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for reading and managing articles.
type Server struct {
	session *app.Session
	logger  *slog.Logger
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server.
func New(session *app.Session, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"markdown":     renderMarkdown,
		"categoryName": news.CategoryName,
		"bookmarked":   session.News.IsBookmarked,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "article.html", "search.html", "bookmarks.html", "preferences.html", "login.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{session: session, logger: logger, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /article/{id}", s.handleArticle)
	s.mux.HandleFunc("GET /category/{id}", s.handleCategory)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("POST /refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /bookmarks", s.handleBookmarks)
	s.mux.HandleFunc("POST /bookmarks/clear", s.handleClearBookmarks)
	s.mux.HandleFunc("POST /bookmarks/{id}/toggle", s.handleToggleBookmark)
	s.mux.HandleFunc("POST /bookmarks/{id}/remove", s.handleRemoveBookmark)

	s.mux.HandleFunc("GET /preferences", s.handlePreferences)
	s.mux.HandleFunc("POST /preferences", s.handleUpdatePreferences)

	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	store := s.session.News
	if r.URL.Query().Has("category") {
		store.SetCategoryFilter(strings.TrimSpace(r.URL.Query().Get("category")))
	}

	s.render(w, r, "index.html", map[string]any{
		"Heading":  "Latest news",
		"Active":   store.ActiveFilter(),
		"Articles": store.Articles(),
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.render(w, r, "index.html", map[string]any{
		"Heading":  news.CategoryName(id),
		"Active":   id,
		"Articles": s.session.News.GetByCategory(id),
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	article, ok := s.session.News.GetByID(r.PathValue("id"))
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	s.renderStatus(w, r, status, "article.html", map[string]any{
		"Article": article,
		"Found":   ok,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := map[string]any{"Query": query}
	if query != "" {
		results, err := s.session.News.Search(r.Context(), query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("search failed", "query", query, "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		data["Articles"] = results
		data["Searched"] = true
	}
	s.render(w, r, "search.html", data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.News.Refresh(r.Context()); err != nil {
		s.logger.Error("refresh failed", "err", err)
	}
	http.Redirect(w, r, redirectTarget(r, "/"), http.StatusFound)
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "bookmarks.html", map[string]any{
		"Articles": s.session.News.Bookmarks(),
	})
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	s.session.News.ToggleBookmark(r.Context(), r.PathValue("id"))
	http.Redirect(w, r, redirectTarget(r, "/"), http.StatusFound)
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	s.session.News.RemoveBookmark(r.Context(), r.PathValue("id"))
	http.Redirect(w, r, redirectTarget(r, "/bookmarks"), http.StatusFound)
}

func (s *Server) handleClearBookmarks(w http.ResponseWriter, r *http.Request) {
	s.session.News.ClearBookmarks(r.Context())
	http.Redirect(w, r, "/bookmarks", http.StatusFound)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "preferences.html", map[string]any{
		"Prefs": s.session.Preferences.Get(),
		"Saved": r.URL.Query().Has("saved"),
	})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	categories := r.PostForm["categories"]
	if categories == nil {
		categories = []string{}
	}
	ai := r.PostForm.Get("ai_personalization") == "on"
	breaking := r.PostForm.Get("breaking_news") == "on"

	_, err := s.session.UpdatePreferences(r.Context(), preferences.Patch{
		Categories:        categories,
		AIPersonalization: &ai,
		BreakingNews:      &breaking,
	})
	if err != nil {
		s.logger.Error("saving preferences", "err", err)
		http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/preferences?saved=1", http.StatusFound)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", map[string]any{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	_, err := s.session.Auth.Login(r.Context(), r.FormValue("email"), r.FormValue("password"))
	s.finishAuth(w, r, err)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	_, err := s.session.Auth.Register(r.Context(), r.FormValue("name"), r.FormValue("email"), r.FormValue("password"))
	s.finishAuth(w, r, err)
}

func (s *Server) finishAuth(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInvalidRegistration) {
			status = http.StatusBadRequest
		}
		s.renderStatus(w, r, status, "login.html", map[string]any{"Error": err.Error()})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Auth.Logout(r.Context()); err != nil {
		http.Error(w, "Failed to logout. Please try again.", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if _, ok := data["Query"]; !ok {
		data["Query"] = ""
	}
	data["Categories"] = s.session.News.Categories()
	data["Path"] = r.URL.RequestURI()
	if u, ok := s.session.Auth.Current(); ok {
		data["User"] = u
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.logger.Error("rendering template", "name", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// redirectTarget returns the form's "next" path when it is local, else fallback.
func redirectTarget(r *http.Request, fallback string) string {
	next := r.FormValue("next")
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return fallback
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port and stops when ctx is done.
func Serve(ctx context.Context, session *app.Session, port int, logger *slog.Logger) error {
	srv, err := New(session, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("server listening", "url", "http://"+addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
