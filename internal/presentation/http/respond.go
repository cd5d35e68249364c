package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	appadmin "github.com/altmarket/digitalstore/internal/application/admin"
	appdownload "github.com/altmarket/digitalstore/internal/application/download"
	apppurchase "github.com/altmarket/digitalstore/internal/application/purchase"
	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/grant"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
)

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps domain sentinel errors onto status codes. Handlers
// with a bespoke response shape do their own mapping instead.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, appdownload.ErrProductGone):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, catalog.ErrInvalidID),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidFile),
		errors.Is(err, apppurchase.ErrOrderIDRequired),
		errors.Is(err, apppurchase.ErrProductIDRequired),
		errors.Is(err, appdownload.ErrCredentialRequired):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, catalog.ErrExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, grant.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, appadmin.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// statusRecorder captures the handler's status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
