package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/db"
	"github.com/swelljoe/devotional/internal/devotional"
	"github.com/swelljoe/devotional/internal/logger"
	"github.com/swelljoe/devotional/internal/sermons"
	"github.com/swelljoe/devotional/internal/verse"
	"github.com/swelljoe/devotional/internal/weather"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const defaultContextWait = 20 * time.Second

// Database defines the interface for database operations needed by handlers
type Database interface {
	Ping() error
}

// ChapterSource looks up full chapters for study mode.
type ChapterSource interface {
	GetChapter(ctx context.Context, reference string) (*verse.Chapter, error)
}

// Deps are the collaborators the handlers serve from. Only Daily is required.
type Deps struct {
	DB          Database
	Daily       *devotional.Daily
	Chapters    ChapterSource
	Weather     *weather.Service
	Sermons     *sermons.Service
	BasePath    string
	ContextWait time.Duration
}

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	db          Database
	daily       *devotional.Daily
	chapters    ChapterSource
	weather     *weather.Service
	sermons     *sermons.Service
	templates   *template.Template
	basePath    string
	contextWait time.Duration
	log         *zap.Logger
}

// New creates a new Handlers instance
func New(deps Deps) *Handlers {
	log := logger.WithModule("http")

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
		"longDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		log.Error("failed to parse templates", zap.Error(err))
	}

	wait := deps.ContextWait
	if wait <= 0 {
		wait = defaultContextWait
	}

	return &Handlers{
		db:          deps.DB,
		daily:       deps.Daily,
		chapters:    deps.Chapters,
		weather:     deps.Weather,
		sermons:     deps.Sermons,
		templates:   tmpl,
		basePath:    deps.BasePath,
		contextWait: wait,
		log:         log,
	}
}

// Routes returns the application handler, mounted under the base path if one is set.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		h.log.Error("failed to open static assets", zap.Error(err))
	} else {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	h.handle(mux, "/", h.HandleIndex)
	h.handle(mux, "/sermons", h.HandleSermons)
	h.handle(mux, "/health", h.HandleHealth)
	h.handle(mux, "/api/verse", h.HandleVerseAPI)
	h.handle(mux, "/api/verse/context", h.HandleContextAPI)
	h.handle(mux, "/api/chapter", h.HandleChapterAPI)
	h.handle(mux, "/api/weather", h.HandleWeatherAPI)
	h.handle(mux, "/api/sermons", h.HandleSermonsAPI)
	mux.Handle("/metrics", promhttp.Handler())

	var root http.Handler = mux
	if h.basePath != "" {
		outer := http.NewServeMux()
		outer.Handle(h.basePath+"/", http.StripPrefix(h.basePath, mux))
		outer.Handle(h.basePath, http.RedirectHandler(h.basePath+"/", http.StatusMovedPermanently))
		root = outer
	}
	return requestID(h.log, root)
}

func (h *Handlers) handle(mux *http.ServeMux, path string, fn http.HandlerFunc) {
	mux.Handle(path, instrument(path, fn))
}

type indexPage struct {
	BasePath    string
	Date        string
	DayKey      string
	Record      *devotional.Record
	Chapter     string
	Error       string
	Enrichment  string
	ContextNote string
}

// HandleIndex handles the main page
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page := indexPage{BasePath: h.basePath}
	if h.daily != nil {
		cache := h.daily.Cache()
		page.Date = cache.Now().In(cache.Rollover().Location).Format("01/02/2006")

		v, err := h.daily.Current(r.Context())
		switch {
		case err != nil:
			page.Error = devotional.UserMessage(devotional.KindOf(err))
			if v != nil {
				page.DayKey = v.Key().String()
			}
		default:
			rec := v.Record()
			page.DayKey = v.Key().String()
			page.Record = rec
			page.Chapter = verse.ChapterReference(rec.Reference)
			page.Enrichment = rec.Enrichment
			if !rec.HasEnrichment() {
				if enrichErr := v.EnrichmentErr(); enrichErr != nil {
					page.ContextNote = devotional.UserMessage(devotional.KindOf(enrichErr))
				}
			}
		}
	} else {
		page.Error = devotional.UserMessage(devotional.FetchFailure)
	}

	h.render(w, "index.html", page)
}

type sermonsPage struct {
	BasePath string
	sermons.Listing
}

// HandleSermons renders the sermon grid
func (h *Handlers) HandleSermons(w http.ResponseWriter, r *http.Request) {
	page := sermonsPage{BasePath: h.basePath, Listing: h.listSermons(r.Context())}
	h.render(w, "sermons.html", page)
}

func (h *Handlers) listSermons(ctx context.Context) sermons.Listing {
	if h.sermons == nil {
		return sermons.Listing{Videos: sermons.Fallback(), Source: sermons.SourceFallback}
	}
	return h.sermons.List(ctx)
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	if h.templates == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("error executing template", zap.String("template", name), zap.Error(err))
	}
}

// HandleHealth handles health check endpoint
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.db != nil {
		if err := h.db.Ping(); errors.Is(err, db.ErrNoDatabase) {
			status = "no_database"
		} else if err != nil {
			status = "degraded"
		}
	} else {
		status = "no_database"
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type verseResponse struct {
	DayKey     string `json:"day_key"`
	Text       string `json:"text"`
	Reference  string `json:"reference"`
	Chapter    string `json:"chapter"`
	Enrichment string `json:"enrichment,omitempty"`
	State      string `json:"state"`
}

// HandleVerseAPI returns today's record
func (h *Handlers) HandleVerseAPI(w http.ResponseWriter, r *http.Request) {
	if h.daily == nil {
		writeError(w, http.StatusServiceUnavailable, devotional.FetchFailure)
		return
	}

	v, err := h.daily.Current(r.Context())
	if err != nil {
		h.writeDevotionalError(w, r, err)
		return
	}

	rec := v.Record()
	cache := h.daily.Cache()
	if rec.HasEnrichment() {
		now := cache.Now()
		maxAge := int(math.Ceil(cache.Rollover().Next(now).Sub(now).Seconds()))
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}

	writeJSON(w, http.StatusOK, verseResponse{
		DayKey:     v.Key().String(),
		Text:       rec.Text,
		Reference:  rec.Reference,
		Chapter:    verse.ChapterReference(rec.Reference),
		Enrichment: rec.Enrichment,
		State:      v.State().String(),
	})
}

// HandleContextAPI waits a bounded time for today's commentary
func (h *Handlers) HandleContextAPI(w http.ResponseWriter, r *http.Request) {
	if h.daily == nil {
		writeError(w, http.StatusServiceUnavailable, devotional.FetchFailure)
		return
	}

	v, err := h.daily.Current(r.Context())
	if err != nil {
		h.writeDevotionalError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.contextWait)
	defer cancel()

	rec, err := v.WaitEnrichment(ctx)
	if rec != nil && rec.HasEnrichment() {
		writeJSON(w, http.StatusOK, map[string]string{"enrichment": rec.Enrichment})
		return
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusAccepted, errorBody{Code: "pending", Message: "Context is still being generated."})
		return
	}
	h.writeDevotionalError(w, r, err)
}

// HandleChapterAPI returns a full chapter, defaulting to today's verse's chapter
func (h *Handlers) HandleChapterAPI(w http.ResponseWriter, r *http.Request) {
	if h.chapters == nil {
		writeError(w, http.StatusServiceUnavailable, devotional.FetchFailure)
		return
	}

	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" && h.daily != nil {
		if v, err := h.daily.Current(r.Context()); err == nil {
			ref = verse.ChapterReference(v.Record().Reference)
		}
	}
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "Please provide a chapter reference."})
		return
	}

	ch, err := h.chapters.GetChapter(r.Context(), ref)
	if err != nil {
		h.log.Warn("chapter lookup failed", zap.String("ref", ref), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{
			Code:    devotional.FetchFailure.String(),
			Message: "Failed to load chapter.",
		})
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// HandleWeatherAPI handles weather data requests
func (h *Handlers) HandleWeatherAPI(w http.ResponseWriter, r *http.Request) {
	if h.weather == nil {
		writeError(w, http.StatusServiceUnavailable, devotional.LocationOrStorageUnavailable)
		return
	}

	var lat, lon float64
	var err error

	location := strings.TrimSpace(r.URL.Query().Get("location"))
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	switch {
	case location != "":
		lat, lon, err = h.weather.Geocode(r.Context(), location)
		if errors.Is(err, weather.ErrLocationNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{
				Code:    devotional.LocationOrStorageUnavailable.String(),
				Message: fmt.Sprintf("Location not found: %s", location),
			})
			return
		}
		if err != nil {
			h.log.Warn("geocode failed", zap.String("location", location), zap.Error(err))
			writeError(w, http.StatusBadGateway, devotional.LocationOrStorageUnavailable)
			return
		}
	case latStr != "" && lonStr != "":
		lat, err = strconv.ParseFloat(latStr, 64)
		if err == nil {
			lon, err = strconv.ParseFloat(lonStr, 64)
		}
		if err != nil || !weather.ValidCoordinates(lat, lon) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Code:    devotional.LocationOrStorageUnavailable.String(),
				Message: "Invalid coordinates.",
			})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    devotional.LocationOrStorageUnavailable.String(),
			Message: "Location access denied.",
		})
		return
	}

	wd, err := h.weather.GetWeather(r.Context(), lat, lon)
	if err != nil {
		h.log.Warn("weather error", zap.Error(err))
		writeError(w, http.StatusBadGateway, devotional.LocationOrStorageUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// HandleSermonsAPI returns the sermon listing as JSON
func (h *Handlers) HandleSermonsAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.listSermons(r.Context()))
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handlers) writeDevotionalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: "timeout", Message: "Request timed out."})
		return
	}

	kind := devotional.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case devotional.FetchFailure, devotional.EnrichmentFailure:
		status = http.StatusBadGateway
	case devotional.EnrichmentRateLimited:
		status = http.StatusTooManyRequests
	case devotional.ConfigurationMissing, devotional.LocationOrStorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	h.log.Debug("request failed",
		zap.String("path", r.URL.Path),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
	writeError(w, status, kind)
}

func writeError(w http.ResponseWriter, status int, kind devotional.Kind) {
	writeJSON(w, status, errorBody{Code: kind.String(), Message: devotional.UserMessage(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Logger().Error("JSON encode error", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Logger().Debug("response write error", zap.Error(err))
	}
}
