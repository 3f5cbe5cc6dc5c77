package service

import (
	"errors"
	"net/http"

	"go-office-trash/internal/model"
	"go-office-trash/pkg/apierror"
)

type errorKind struct {
	err     error
	code    string
	status  int
	message string
}

// errorKinds is ordered: the first sentinel matched wins.
var errorKinds = []errorKind{
	{model.ErrDuplicateEntry, "DUPLICATE_ENTRY", http.StatusConflict, "Entity is already in the trash"},
	{model.ErrTrashItemNotFound, "NOT_FOUND", http.StatusNotFound, "Trash item not found"},
	{model.ErrItemAlreadyRestored, "ALREADY_RESTORED", http.StatusConflict, "Item already restored"},
	{model.ErrNotRestorable, "NOT_RESTORABLE", http.StatusUnprocessableEntity, "Item cannot be restored"},
	{model.ErrRestoreConflict, "CONFLICT", http.StatusConflict, "A live record with this id already exists"},
	{model.ErrPurgeRejected, "PURGE_REJECTED", http.StatusConflict, "Restored items cannot be permanently deleted"},
	{model.ErrStorageUnavailable, "STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "Storage is unavailable"},
	{model.ErrTrashDisabled, "TRASH_DISABLED", http.StatusConflict, "Trash is disabled"},
	{model.ErrTrashFull, "TRASH_FULL", http.StatusInsufficientStorage, "Trash capacity exceeded"},
	{model.ErrForbidden, "FORBIDDEN", http.StatusForbidden, "Access denied"},
	{model.ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "Authentication required"},
	{model.ErrInvalidCredentials, "UNAUTHORIZED", http.StatusUnauthorized, "Invalid credentials"},
	{model.ErrUserNotFound, "NOT_FOUND", http.StatusNotFound, "User not found"},
	{model.ErrUserAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "User already exists"},
	{model.ErrEntityNotFound, "NOT_FOUND", http.StatusNotFound, "Entity not found"},
	{model.ErrEntityExists, "ALREADY_EXISTS", http.StatusConflict, "Entity already exists"},
	{model.ErrUnknownEntityType, "BAD_REQUEST", http.StatusBadRequest, "Unknown entity type"},
	{model.ErrJobNotFound, "NOT_FOUND", http.StatusNotFound, "Job not found"},
	{model.ErrInvalidInput, "BAD_REQUEST", http.StatusBadRequest, "Invalid input"},
}

// Classify resolves err to its response code, HTTP status and public message.
// ok is false for errors with no known kind.
func Classify(err error) (code string, status int, message string, ok bool) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.HTTPStatus, apiErr.Message, true
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			return kind.code, kind.status, kind.message, true
		}
	}
	return "INTERNAL_ERROR", http.StatusInternalServerError, "Unexpected server error", false
}

// ErrorCode is the code recorded for a failed item in a bulk result.
func ErrorCode(err error) string {
	code, _, _, _ := Classify(err)
	return code
}
