package handlers

import (
	"net/http"

	"github.com/nkiryanov/embla/internal/handlers/render"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/service/issuer"
	"github.com/nkiryanov/embla/internal/service/relay"
)

func handleTokenObtain(cr cookieRelay, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := render.BindObject(w, r)
		if err != nil {
			return
		}

		res, err := cr.Obtain(r.Context(), issuer.Payload(payload))
		if err != nil {
			l.Error("token obtain failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeResult(w, res)
	})
}

func handleTokenRefresh(cr cookieRelay, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := render.BindObject(w, r)
		if err != nil {
			return
		}

		res, err := cr.Refresh(r.Context(), r, issuer.Payload(payload))
		if err != nil {
			l.Error("token refresh failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeResult(w, res)
	})
}

func handleTokenVerify(cr cookieRelay, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := render.BindObject(w, r)
		if err != nil {
			return
		}

		res, err := cr.Verify(r.Context(), r, issuer.Payload(payload))
		if err != nil {
			l.Error("token verify failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeResult(w, res)
	})
}

func handleLogout(cr cookieRelay) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, cr.Logout())
	})
}

func handleCSRF(ci csrfIssuer, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ci.Ensure(w, r); err != nil {
			l.Error("can't set csrf cookie", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, render.ErrorResponse{Detail: "CSRF cookie set"})
	})
}

// Cookies go first: headers are frozen once status is written
func writeResult(w http.ResponseWriter, res relay.Result) {
	for _, c := range res.Cookies {
		http.SetCookie(w, c)
	}

	data := res.Data
	if data == nil {
		data = map[string]any{}
	}
	render.JSONWithStatus(w, data, res.Status)
}
