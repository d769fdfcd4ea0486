// Package server exposes reports over HTTP: an HTML view and a small JSON
// API for starting runs and polling their progress.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/database"
	"github.com/TobiSchelling/adreport/internal/exposure"
	"github.com/TobiSchelling/adreport/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

const listLimit = 100

// Runner creates and executes report jobs.
type Runner interface {
	Create(req report.Request) (*report.Job, error)
	Run(ctx context.Context, job *report.Job) (*report.Output, error)
}

// Server is the HTTP server for serving reports.
type Server struct {
	db     *database.DB
	runner Runner
	logger *zap.Logger
	pages  map[string]*template.Template
	mux    *http.ServeMux

	// runs tracks background report jobs.
	runs    sync.WaitGroup
	baseCtx context.Context
}

// New creates a new Server. Background runs use ctx and stop when it is
// cancelled.
func New(ctx context.Context, db *database.DB, runner Runner, logger *zap.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so their "content" blocks don't
	// collide.
	pageNames := []string{"index.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:      db,
		runner:  runner,
		logger:  logger,
		pages:   pages,
		mux:     http.NewServeMux(),
		baseCtx: ctx,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /reports/{id}", s.handleReport)
	s.mux.HandleFunc("GET /api/reports/{id}", s.handleReportStatus)
	s.mux.HandleFunc("POST /api/reports", s.handleCreateReport)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.ListReports(listLimit)
	if err != nil {
		s.logger.Error("Listing reports", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	adCount, err := s.db.CountAds()
	if err != nil {
		s.logger.Error("Counting ads", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Reports": reports,
		"AdCount": adCount,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}

	var markdown string
	if rep.Status == report.StatusComplete && rep.ReportJSON != nil {
		out, err := report.Decode([]byte(*rep.ReportJSON))
		if err != nil {
			s.logger.Error("Decoding stored report", zap.String("report_id", rep.ID), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		markdown = report.RenderMarkdown(out)
	}

	s.render(w, "report.html", map[string]any{
		"Report":   rep,
		"Markdown": markdown,
	})
}

type statusResponse struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	ProgressCurrent int             `json:"progress_current"`
	ProgressTotal   int             `json:"progress_total"`
	Error           string          `json:"error,omitempty"`
	Report          json.RawMessage `json:"report,omitempty"`
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}

	resp := statusResponse{
		ID:              rep.ID,
		Status:          rep.Status,
		ProgressCurrent: rep.ProgressCurrent,
		ProgressTotal:   rep.ProgressTotal,
	}
	if rep.Error != nil {
		resp.Error = *rep.Error
	}
	if rep.ReportJSON != nil {
		resp.Report = json.RawMessage(*rep.ReportJSON)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type createRequest struct {
	Cutoff     string `json:"cutoff"`
	ReportEnd  string `json:"report_end"`
	CompareVOC bool   `json:"compare_voc"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	req := report.Request{CompareVOC: body.CompareVOC}
	for _, f := range []struct {
		raw  string
		dest *time.Time
		name string
	}{{body.Cutoff, &req.Cutoff, "cutoff"}, {body.ReportEnd, &req.ReportEnd, "report_end"}} {
		if f.raw == "" {
			continue
		}
		t, ok := exposure.ParseDate(f.raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unparseable "+f.name)
			return
		}
		*f.dest = t
	}

	job, err := s.runner.Create(req)
	if errors.Is(err, report.ErrNoAds) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("Creating report", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not create report")
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		// Failures are recorded on the job itself.
		_, _ = s.runner.Run(s.baseCtx, job)
	}()

	w.Header().Set("Location", "/api/reports/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, statusResponse{
		ID:            job.ID,
		Status:        report.StatusPending,
		ProgressTotal: job.Total,
	})
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*database.Report, bool) {
	rep, err := s.db.GetReport(id)
	if errors.Is(err, database.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("Loading report", zap.String("report_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not load report")
		return nil, false
	}
	return rep, true
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("Template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("Rendering template", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the HTTP server on the given port until ctx is cancelled, then
// waits for in-flight report runs.
func Serve(ctx context.Context, db *database.DB, runner Runner, port int, logger *zap.Logger) error {
	srv, err := New(ctx, db, runner, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("url", "http://"+addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	srv.Wait()
	return nil
}
