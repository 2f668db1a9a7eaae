package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/pkg/httputil"
	"github.com/utafrali/natours/pkg/middleware"
	"github.com/utafrali/natours/pkg/validator"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validator.DecodeAndValidate(w, r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// pathID reads a UUID path parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	return httputil.ParseID(w, chi.URLParam(r, name))
}

func listParams(r *http.Request) query.Params {
	return query.ParseParams(r.URL.Query())
}

func writeList(w http.ResponseWriter, res *query.Result) {
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(res.Documents, res.Page, res.Limit))
}

func actor(r *http.Request) service.Actor {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		return service.Actor{}
	}
	return service.Actor{UserID: p.UserID, Role: p.Role}
}
