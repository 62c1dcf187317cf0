package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"labmap/pkg/auth"
	"labmap/pkg/dashboard"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
	"labmap/pkg/metrics"
	"labmap/pkg/qrcard"
	"labmap/pkg/session"
)

const (
	maxBodyBytes   = 64 << 10
	defaultQRSize  = 512
	minQRSize      = 128
	maxQRSize      = 1024
	maxRenderError = 2048
)

// errBadRequest marks input the handler refuses before touching state.
var errBadRequest = errors.New("bad request")

// =======================
// Public API entry points
// =======================

// Handler turns dashboard events into JSON snapshots. What a browser
// changes is kept in its session's working state and re-applied to the
// shared, read-only dashboard.
type Handler struct {
	Loaded   *Readiness
	Sessions *session.Manager
	Gate     *auth.Gate
	Images   *ResponseCache
	Logf     func(string, ...any)
	// Errorf receives failures; Logf is used when it is nil.
	Errorf func(string, ...any)
}

// NewHandler constructs a Handler. Images and both log hooks may be nil.
func NewHandler(loaded *Readiness, sessions *session.Manager, gate *auth.Gate, images *ResponseCache, logf, errorf func(string, ...any)) *Handler {
	return &Handler{Loaded: loaded, Sessions: sessions, Gate: gate, Images: images, Logf: logf, Errorf: errorf}
}

// Register mounts the /api routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Get("/session", h.handleSession)
			r.Get("/status", h.handleStatus)
			r.Post("/render-error", h.handleRenderError)

			r.Group(func(r chi.Router) {
				r.Use(h.requireDashboard)
				r.Get("/state", h.event("state", func(s *dashboard.Session, _ *http.Request) (dashboard.Snapshot, error) {
					return s.Snapshot()
				}))
				r.Post("/search", h.event("search", applySearch))
				r.Post("/facets/all", h.event("select_all", func(s *dashboard.Session, _ *http.Request) (dashboard.Snapshot, error) {
					return s.SelectAll()
				}))
				r.Post("/facets/toggle", h.event("toggle_facet", applyToggle))
				r.Post("/navigate/{id}", h.event("navigate", func(s *dashboard.Session, r *http.Request) (dashboard.Snapshot, error) {
					return s.Navigate(pathParam(r, "id"))
				}))
				r.Post("/points/{id}/click", h.event("point_click", applyPointClick))
				r.Post("/clusters/{id}/click", h.event("cluster_click", applyClusterClick))
				r.Post("/card/close", h.event("card_close", func(s *dashboard.Session, _ *http.Request) (dashboard.Snapshot, error) {
					return s.CloseCard()
				}))
				r.Get("/clusters", h.handleClusters)
				r.Get("/labs/{id}/qr.png", h.handleQR)
			})
		})
	})
}

// =====================
// Authentication
// =====================

type loginRequest struct {
	Identity string `json:"identity"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	identity := req.Identity
	if identity == "" {
		identity = req.Email
	}

	user, err := h.Gate.Check(identity, req.Password)
	if err != nil {
		metrics.Logins.WithLabelValues("failure").Inc()
		h.respondJSON(w, http.StatusUnauthorized, map[string]any{
			"error":        auth.FailureMessage,
			"clearAfterMs": auth.FailureClearAfter.Milliseconds(),
		})
		return
	}

	sess, err := h.Sessions.Load(r)
	if err != nil {
		sess = h.Sessions.New()
	}
	sess.SignIn(user)
	if err := h.Sessions.Save(w, sess); err != nil {
		h.errorf("save session: %v", err)
		h.respondError(w, http.StatusInternalServerError, "session error")
		return
	}
	metrics.Logins.WithLabelValues("success").Inc()
	h.respondJSON(w, http.StatusOK, map[string]string{"user": user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Destroy(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"user": sessionFrom(r.Context()).User()})
}

// =====================
// Load state
// =====================

type statusResponse struct {
	Phase string `json:"phase"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	phase, _, err := h.Loaded.Current()
	resp := statusResponse{Phase: phase}
	if err != nil {
		resp.Error = failureText(err)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

type renderErrorRequest struct {
	Message string `json:"message"`
}

// handleRenderError records a map initialisation failure reported by the
// browser. The page shows its own panel; the server only logs it.
func (h *Handler) handleRenderError(w http.ResponseWriter, r *http.Request) {
	var req renderErrorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg := strings.TrimSpace(req.Message)
	if len(msg) > maxRenderError {
		msg = msg[:maxRenderError]
	}
	metrics.RenderFailures.Inc()
	h.errorf("render failure (session %s): %s", sessionFrom(r.Context()).ID(), msg)
	w.WriteHeader(http.StatusNoContent)
}

// =====================
// Dashboard events
// =====================

// event wraps one dashboard operation: restore the session state, apply,
// store the new state, answer with the snapshot. Events of one session
// run one at a time.
func (h *Handler) event(name string, apply func(*dashboard.Session, *http.Request) (dashboard.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sess := sessionFrom(r.Context())
		unlock := h.Sessions.Lock(sess.ID())
		defer unlock()
		ds := h.open(r.Context(), sess)

		snap, err := apply(ds, r)
		metrics.Observe(name, start, err)
		if err != nil {
			if errors.Is(err, errBadRequest) {
				h.respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.errorf("%s: %v", name, err)
			h.respondError(w, http.StatusInternalServerError, "dashboard error")
			return
		}

		sess.SetDashboard(ds.State, ds.Card)
		if err := h.Sessions.Save(w, sess); err != nil {
			h.errorf("save session: %v", err)
			h.respondError(w, http.StatusInternalServerError, "session error")
			return
		}
		h.respondJSON(w, http.StatusOK, snap)
	}
}

func (h *Handler) open(ctx context.Context, sess *session.Session) *dashboard.Session {
	var stored *filter.State
	if st, ok := sess.Filter(); ok {
		stored = &st
	}
	return dashboardFrom(ctx).Open(stored, sess.Card())
}

type searchRequest struct {
	Query string `json:"q"`
}

func applySearch(s *dashboard.Session, r *http.Request) (dashboard.Snapshot, error) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.Search(req.Query)
}

type toggleRequest struct {
	Value   string `json:"value"`
	Checked *bool  `json:"checked"`
}

func applyToggle(s *dashboard.Session, r *http.Request) (dashboard.Snapshot, error) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		return dashboard.Snapshot{}, err
	}
	if req.Value == "" || req.Checked == nil {
		return dashboard.Snapshot{}, fmt.Errorf("%w: value and checked are required", errBadRequest)
	}
	return s.ToggleFacet(req.Value, *req.Checked)
}

type clickRequest struct {
	Lon *float64 `json:"lon"`
	Lat *float64 `json:"lat"`
}

func (c clickRequest) location() *labs.Location {
	if c.Lon == nil || c.Lat == nil {
		return nil
	}
	return &labs.Location{Lon: *c.Lon, Lat: *c.Lat}
}

func applyPointClick(s *dashboard.Session, r *http.Request) (dashboard.Snapshot, error) {
	var req clickRequest
	if err := decodeJSON(r, &req); err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.ClickPoint(pathParam(r, "id"), req.location())
}

func applyClusterClick(s *dashboard.Session, r *http.Request) (dashboard.Snapshot, error) {
	var req clickRequest
	if err := decodeJSON(r, &req); err != nil {
		return dashboard.Snapshot{}, err
	}
	at := req.location()
	if at == nil {
		return dashboard.Snapshot{}, fmt.Errorf("%w: lon and lat are required", errBadRequest)
	}
	return s.ClickCluster(pathParam(r, "id"), *at)
}

// =====================
// Map geometry
// =====================

type clustersResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Zoom        int             `json:"zoom"`
	Glyphs      []mapview.Glyph `json:"glyphs"`
}

// handleClusters answers GET /api/clusters?zoom=Z&bbox=W,S,E,N for the
// session's current visible set. It reads state but never writes it.
func (h *Handler) handleClusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "zoom must be an integer")
		return
	}
	zoom = clampInt(zoom, 0, 22)
	bbox, err := parseBBox(q.Get("bbox"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	ds := h.open(r.Context(), sessionFrom(r.Context()))
	snap, err := ds.Snapshot()
	var glyphs []mapview.Glyph
	if err == nil {
		glyphs, err = ds.Clusters(zoom, bbox)
	}
	metrics.Observe("clusters", start, err)
	if err != nil {
		h.errorf("clusters: %v", err)
		h.respondError(w, http.StatusInternalServerError, "dashboard error")
		return
	}
	if glyphs == nil {
		glyphs = []mapview.Glyph{}
	}
	h.respondJSON(w, http.StatusOK, clustersResponse{
		Fingerprint: snap.Geometry.Fingerprint,
		Zoom:        zoom,
		Glyphs:      glyphs,
	})
}

func parseBBox(v string) (*mapview.BBox, error) {
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be west,south,east,north")
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox: %q is not a number", p)
		}
		n[i] = f
	}
	return &mapview.BBox{West: n[0], South: n[1], East: n[2], North: n[3]}, nil
}

// =====================
// Share image
// =====================

// handleQR serves a QR code that opens the dashboard on one laboratory.
func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if _, _, ok := dashboardFrom(r.Context()).Dataset().Lookup(id); !ok {
		h.respondError(w, http.StatusNotFound, "unknown laboratory")
		return
	}
	size := clampInt(parseIntDefault(r.URL.Query().Get("size"), defaultQRSize), minQRSize, maxQRSize)
	link := baseURL(r) + "/?lab=" + url.QueryEscape(id)

	render := func(context.Context) ([]byte, error) {
		var buf bytes.Buffer
		if err := qrcard.EncodePNG(&buf, link, qrcard.Options{SizePx: size}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	data, err := h.Images.Get(r.Context(), link+"|"+strconv.Itoa(size), render)
	if errors.Is(err, errCacheDisabled) {
		data, err = render(r.Context())
	}
	if err != nil {
		h.errorf("qr %s: %v", id, err)
		h.respondError(w, http.StatusInternalServerError, "qr error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "https" || p == "http" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// =====================
// Middleware
// =====================

type ctxKey int

const (
	sessionKey ctxKey = iota
	dashboardKey
)

// requireUser admits only sessions that passed the credential gate.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.Sessions.Load(r)
		if errors.Is(err, session.ErrExpired) {
			h.Sessions.Destroy(w, r)
			h.respondError(w, http.StatusUnauthorized, "session expired")
			return
		}
		if err != nil || !sess.Authenticated() {
			h.respondError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// requireDashboard holds events back until the startup load settled.
// Both the loading and the failed phase answer 503 with the status body.
func (h *Handler) requireDashboard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		phase, d, err := h.Loaded.Current()
		if phase != PhaseReady {
			resp := statusResponse{Phase: phase}
			if err != nil {
				resp.Error = failureText(err)
			}
			h.respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), dashboardKey, d)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func dashboardFrom(ctx context.Context) *dashboard.Dashboard {
	d, _ := ctx.Value(dashboardKey).(*dashboard.Dashboard)
	return d
}

// =====================
// Utility helpers
// =====================

// decodeJSON reads an optional JSON body. An empty body leaves dst as is.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logf != nil {
		h.Logf(format, args...)
	}
}

func (h *Handler) errorf(format string, args ...any) {
	if h.Errorf != nil {
		h.Errorf(format, args...)
		return
	}
	h.logf(format, args...)
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// pathParam returns a decoded route parameter. chi matches on RawPath
// when the request carried non-canonical escapes (":" as %3A), in which
// case the captured value is still escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
