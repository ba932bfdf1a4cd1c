package api

import (
	"errors"
	"net/http"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	service "github.com/LinkesAuge/chestbuddy/internal/app"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/errs"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
)

// classify maps a service error onto an HTTP status and a stable machine
// code. Known sentinels take precedence; anything unclassified falls back
// to the errs kind taxonomy.
func classify(err error) (status int, code string) {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusConflict, "queue_full"
	case errors.Is(err, service.ErrQueueClosed), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, service.ErrFileNotFound):
		return http.StatusBadRequest, "file_not_found"
	case errors.Is(err, service.ErrUnknownListKind), errors.Is(err, service.ErrUnknownChartKind):
		return http.StatusNotFound, "unknown_kind"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, jobs.ErrUnknownJob),
		errors.Is(err, correction.ErrRuleNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrUnknownField),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidValue),
		errors.Is(err, model.ErrMissingPlayer),
		errors.Is(err, model.ErrMissingChestType),
		errors.Is(err, correction.ErrEmptyFrom):
		return http.StatusBadRequest, "validation"
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound, "not_found"
	case errs.KindInvalid:
		return http.StatusBadRequest, "validation"
	case errs.KindConflict:
		return http.StatusConflict, "conflict"
	case errs.KindUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeServiceError renders err with the right status. Client errors keep
// their message so callers see the failing field; server errors are
// reduced to a generic text that never leaks internals.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		writeJSON(w, status, errorResponse{Error: errs.UserMessage(err), Code: code})
		return
	}
	writeError(w, status, code, err)
}
