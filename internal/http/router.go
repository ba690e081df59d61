package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courseloop/api/internal/service/auth"
	"github.com/courseloop/api/internal/service/course"
	"github.com/courseloop/api/internal/service/review"
	"github.com/courseloop/api/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	courses  course.Service
	reviews  review.Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, courseSvc course.Service, reviewSvc review.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		auth:    authSvc,
		courses: courseSvc,
		reviews: reviewSvc,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/users", r.audit("users", r.handleUsers))
	r.mux.HandleFunc("/api/users/login", r.audit("users_login", r.withRateLimit("users_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/courses", r.audit("courses", r.handleCourses))
	r.mux.HandleFunc("/api/courses/", r.audit("course_subroutes", r.handleCourseSubroutes))
	r.mux.HandleFunc("/ws/reviews", r.audit("reviews_ws", r.handlerAuthRate("reviews_ws", rateLimitWebsocket, rateWindowRealtime, r.handleReviewsWS)))
}

// userPayload is the credential-free projection returned for accounts.
type userPayload struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	EmailAddress string `json:"emailAddress"`
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.handlerAuthRate("users_read", rateLimitUserRead, rateWindowDefault, r.handleUserProfile)(w, req)
	case http.MethodPost:
		r.withRateLimit("users_create", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleRegister)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload auth.RegisterInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := r.auth.Register(req.Context(), payload); err != nil {
		respondServiceError(w, err, "")
		return
	}
	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusCreated)
}

func (r *Router) handleUserProfile(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	user, err := r.auth.GetProfile(req.Context(), info.UserID)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []userPayload{{ID: user.ID, FullName: user.FullName, EmailAddress: user.Email}},
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"emailAddress"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		respondServiceError(w, unauthenticated(err), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   userPayload{ID: user.ID, FullName: user.FullName, EmailAddress: user.Email},
		"tokens": tokens,
	})
}

func (r *Router) handleCourses(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("courses_list", rateLimitUserRead, rateWindowDefault, rateLimitKeyIP, r.handleCourseList)(w, req)
	case http.MethodPost:
		r.handlerAuthRate("courses_create", rateLimitUserWrite, rateWindowDefault, r.handleCourseCreate)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleCourseList(w http.ResponseWriter, req *http.Request) {
	summaries, err := r.courses.List(req.Context())
	if err != nil {
		respondServiceError(w, err, "")
		return
	}
	type summaryPayload struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	payload := make([]summaryPayload, 0, len(summaries))
	for _, s := range summaries {
		payload = append(payload, summaryPayload{ID: s.ID, Title: s.Title})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": payload})
}

func (r *Router) handleCourseCreate(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for course creation", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload course.Input
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := r.courses.Create(req.Context(), info.UserID, payload)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}
	w.Header().Set("Location", "/api/courses/"+created.ID)
	w.WriteHeader(http.StatusCreated)
}

func (r *Router) handleCourseSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/api/courses/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		r.notFound(w)
		return
	}
	courseID := parts[0]
	switch {
	case len(parts) == 1:
		r.handleCourse(w, req, courseID)
	case len(parts) == 2 && parts[1] == "reviews":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		r.handlerAuthRate("reviews_create", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleReviewCreate(w, req, courseID)
		})(w, req)
	case len(parts) == 3 && parts[1] == "reviews" && parts[2] != "":
		if req.Method != http.MethodDelete {
			r.methodNotAllowed(w)
			return
		}
		reviewID := parts[2]
		r.handlerAuthRate("reviews_delete", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleReviewDelete(w, req, courseID, reviewID)
		})(w, req)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleCourse(w http.ResponseWriter, req *http.Request, courseID string) {
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("courses_read", rateLimitUserRead, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			detail, err := r.courses.Get(req.Context(), courseID)
			if err != nil {
				respondServiceError(w, err, "")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": []*course.Detail{detail}})
		})(w, req)
	case http.MethodPut:
		r.handlerAuthRate("courses_update", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleCourseUpdate(w, req, courseID)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleCourseUpdate(w http.ResponseWriter, req *http.Request, courseID string) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for course update", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload course.Input
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.courses.Update(req.Context(), info.UserID, courseID, payload); err != nil {
		respondServiceError(w, err, "Courses can only be edited by their authors")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleReviewCreate(w http.ResponseWriter, req *http.Request, courseID string) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for review creation", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload review.Input
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := r.reviews.Create(req.Context(), info.UserID, courseID, payload); err != nil {
		respondServiceError(w, err, "")
		return
	}
	w.Header().Set("Location", "/api/courses/"+courseID)
	w.WriteHeader(http.StatusCreated)
}

func (r *Router) handleReviewDelete(w http.ResponseWriter, req *http.Request, courseID, reviewID string) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for review deletion", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if err := r.reviews.Delete(req.Context(), info.UserID, courseID, reviewID); err != nil {
		respondServiceError(w, err, "Reviews can only be deleted by their authors or course authors.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleReviewsWS(w http.ResponseWriter, req *http.Request) {
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for reviews websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "review feed not available")
		return
	}
	courseID := req.URL.Query().Get("course_id")
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "course_id query parameter required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(courseID, client)
	go func() {
		defer func() {
			r.hub.Unregister(courseID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not Found")
}
