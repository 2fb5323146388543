package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"guild-economy/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// APILogMiddleware writes one JSON request line through the shared log sink.
// Realm and account path parameters are attached when the route has them.
func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{"Retry-After"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				route := req.URL.Path
				attrs := []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
				}
				if rc := chi.RouteContext(req.Context()); rc != nil {
					if p := rc.RoutePattern(); p != "" {
						route = p
					}
					for _, key := range []string{"realm", "account"} {
						if v := rc.URLParam(key); v != "" {
							attrs = append(attrs, slog.String(key, v))
						}
					}
				}
				return append(attrs, slog.String("route", route))
			},
		},
	)
}

// redactedFields are blanked in captured admin bodies.
var redactedFields = map[string]bool{"api_key": true, "admin_key": true, "token": true}

// AdminAuditMiddleware attaches the operator and the (truncated, redacted)
// request body of mutating admin calls to the request log line.
func AdminAuditMiddleware(maxBytes int) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			logged := body
			if len(logged) > maxBytes {
				logged = logged[:maxBytes]
			}
			httplog.SetAttrs(r.Context(), slog.String("admin_actor", adminActor(r)))
			httplog.SetAttrs(r.Context(), slog.Any("request_body", redactBody(logged)))
			httplog.SetAttrs(r.Context(), slog.Bool("request_body_truncated", len(body) > maxBytes))
			next.ServeHTTP(w, r)
		})
	}
}

func redactBody(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return string(b)
	}
	for k := range obj {
		if redactedFields[strings.ToLower(k)] {
			obj[k] = "[redacted]"
		}
	}
	return obj
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ServiceAuthMiddleware guards the caller-facing API with a shared bearer
// key. An empty key disables the check.
func ServiceAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && bearerToken(r) != apiKey {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" {
				if !CheckAdminAuth(r, adminKey) {
					writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CheckAdminAuth(r *http.Request, adminKey string) bool {
	if v := r.Header.Get("X-Admin-Key"); v == adminKey {
		return true
	}
	return bearerToken(r) == adminKey
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// adminActor names the operator behind an admin request for ledger metadata.
func adminActor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Admin-Actor")); v != "" {
		return v
	}
	return "admin-api"
}

func ParsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
