package api

import (
	"errors"
	"net/http"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// MapErrorToStatusCode maps an error chain to an HTTP status. Order
// matters: the specific duplicates that are client mistakes come before
// the generic conflict.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrStudentHasGroup),
		errors.Is(err, store.ErrRuleAlreadyAssigned):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, auth.ErrPasswordTooSimilar),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

var notFoundMessages = []struct {
	err error
	msg string
}{
	{store.ErrUserNotFound, "User not found"},
	{store.ErrPromotionNotFound, "Promotion not found"},
	{store.ErrProjectNotFound, "Project not found"},
	{store.ErrPromotionProjectNotFound, "Promotion project not found"},
	{store.ErrProjectGroupNotFound, "Project group not found"},
	{service.ErrNoArchive, "Deliverable has no archive"},
	{store.ErrDeliverableNotFound, "Deliverable not found"},
	{store.ErrRuleNotFound, "Deliverable rule not found"},
	{store.ErrReportSectionNotFound, "Report section not found"},
	{store.ErrReportNotFound, "Report not found"},
	{store.ErrAnalysisNotFound, "Similarity analysis not found"},
}

// GetSafeErrorMessage returns a message that is safe to show a client.
// Validation messages are built from request data and pass through as is;
// anything unexpected is replaced with a generic message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "email or password is not correct"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"
	case errors.Is(err, auth.ErrPasswordTooSimilar):
		return "Password is too similar to your email or name"

	case errors.Is(err, service.ErrNotGroupMember):
		return "You are not a member of this project group"
	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this resource"
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to perform this action"

	case errors.Is(err, store.ErrEmailExists):
		return "email already exists"
	case errors.Is(err, store.ErrPromotionNameTaken):
		return "A promotion with this name already exists"
	case errors.Is(err, store.ErrStudentHasGroup):
		return "Student already has a group in this promotion project"
	case errors.Is(err, store.ErrRuleAlreadyAssigned):
		return "Rule is already assigned to this promotion project"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	}

	if errors.Is(err, store.ErrNotFound) {
		for _, m := range notFoundMessages {
			if errors.Is(err, m.err) {
				return m.msg
			}
		}
		return "Resource not found"
	}

	return "An unexpected error occurred"
}

// HandleAPIError writes the response for err. fallback replaces the safe
// message of unexpected errors when the handler knows a better one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		msg = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}
