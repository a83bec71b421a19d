package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	HandleQuery(ctx context.Context, req types.QueryRequest) (*types.QueryResponse, error)
	SubmitTask(ctx context.Context, req types.TaskRequest) (*types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context, limit int) ([]types.Task, error)
	InterruptTask(ctx context.Context, id string) error
	ResumeTask(ctx context.Context, id string) error
	Status(ctx context.Context) types.StatusResponse
	Checks(ctx context.Context) []types.CheckResult
	Incidents(ctx context.Context, limit int) ([]types.Incident, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req types.QueryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeJSONError(w, http.StatusBadRequest, "query is required")
			return
		}
		if req.Complexity < 0 || req.Complexity > 1 {
			writeJSONError(w, http.StatusBadRequest, "complexity must be in [0,1]")
			return
		}

		start := time.Now()
		// Join server base context with request context so shutdown cancels
		// in-flight work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if queryTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(queryTimeout)*time.Second)
			defer tcancel()
		}

		resp, err := svc.HandleQuery(ctx, req)
		lvl := requestLogLevel(r)
		if err != nil {
			// Client disconnect or shutdown: nothing useful to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeServiceError(w, err)
			if lvl >= LevelInfo {
				logEnd(r, "query", status, time.Since(start).Milliseconds(), middleware.GetReqID(r.Context()))
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
		if lvl >= LevelInfo {
			logEnd(r, "query", http.StatusOK, time.Since(start).Milliseconds(), middleware.GetReqID(r.Context()))
		}
	})

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.TaskRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Description) == "" {
				writeJSONError(w, http.StatusBadRequest, "description is required")
				return
			}
			if len(req.Steps) == 0 {
				writeJSONError(w, http.StatusBadRequest, "at least one step is required")
				return
			}
			t, err := svc.SubmitTask(r.Context(), req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, types.TaskCreated{ID: t.ID})
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			limit := 0
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
					return
				}
				limit = n
			}
			tasks, err := svc.ListTasks(r.Context(), limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			t, err := svc.GetTask(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Post("/{id}/interrupt", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.InterruptTask(r.Context(), chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "interrupting"})
		})

		r.Post("/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.ResumeTask(r.Context(), chi.URLParam(r, "id")); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "resuming"})
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status(r.Context()))
	})

	r.Get("/health/checks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"checks": svc.Checks(r.Context())})
	})

	r.Get("/incidents", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		incs, err := svc.Incidents(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"incidents": incs})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit, then decodes
// into dst. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("event=encode_response_failed")
	}
}
