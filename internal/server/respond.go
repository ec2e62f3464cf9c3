package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bucketview/bucketview/internal/access"
	"github.com/bucketview/bucketview/internal/auth"
	"github.com/bucketview/bucketview/internal/db"
	"github.com/bucketview/bucketview/internal/object"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeOperationError maps domain errors onto the HTTP taxonomy.
// Store and database failures surface as a generic 500; internal
// detail is logged, never returned to the caller.
func writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, object.ErrEmptyKey), errors.Is(err, object.ErrNoKeys):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserRevoked),
		errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "invalid credentials or token")
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many login attempts, please try again later")
	case errors.Is(err, access.ErrDenied), errors.Is(err, access.ErrNoRole):
		writeError(w, http.StatusForbidden, "access to this bucket is not permitted")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, db.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, object.ErrRenamePartial):
		// Non-atomic rename left the object at both keys
		writeError(w, http.StatusInternalServerError, "rename partially applied: object may exist at both keys")
	default:
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("Operation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
