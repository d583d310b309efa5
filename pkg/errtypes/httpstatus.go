package errtypes

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error from the core onto the status code an external
// HTTP layer should surface. It is a pure function —
// the core never writes an HTTP response itself, since request routing is
// an external collaborator.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case asNotFound(err):
		return http.StatusNotFound
	case asNameConflict(err):
		return http.StatusConflict
	case asCycle(err):
		return http.StatusBadRequest
	case asPermissionDenied(err):
		return http.StatusForbidden
	case asRangeUnsatisfiable(err):
		return http.StatusRequestedRangeNotSatisfiable
	case asNamespaceRace(err), asCryptoAuthFail(err):
		return http.StatusInternalServerError
	case asCancelled(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func asNotFound(err error) bool           { var t IsNotFound; return errors.As(err, &t) }
func asNameConflict(err error) bool       { var t IsNameConflict; return errors.As(err, &t) }
func asCycle(err error) bool              { var t IsCycle; return errors.As(err, &t) }
func asPermissionDenied(err error) bool   { var t IsPermissionDenied; return errors.As(err, &t) }
func asRangeUnsatisfiable(err error) bool { var t IsRangeUnsatisfiable; return errors.As(err, &t) }
func asNamespaceRace(err error) bool      { var t IsNamespaceRace; return errors.As(err, &t) }
func asCryptoAuthFail(err error) bool     { var t IsCryptoAuthFail; return errors.As(err, &t) }
func asCancelled(err error) bool          { var t IsCancelled; return errors.As(err, &t) }
