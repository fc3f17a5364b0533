package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"solana-vesting/internal/auth"
	"solana-vesting/internal/vesting"
)

// Error is the JSON error envelope of the API.
type Error struct {
	Code    int          `json:"code"`
	Kind    vesting.Kind `json:"kind"`
	Message string       `json:"error"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.Kind, e.Message)
}

func badRequest(format string, args ...interface{}) Error {
	return Error{Code: fiber.StatusBadRequest, Kind: vesting.KindValidation, Message: fmt.Sprintf(format, args...)}
}

var kindStatus = map[vesting.Kind]int{
	vesting.KindAuthorization: fiber.StatusForbidden,
	vesting.KindValidation:    fiber.StatusBadRequest,
	vesting.KindTiming:        fiber.StatusUnprocessableEntity,
	vesting.KindExternal:      fiber.StatusBadGateway,
	vesting.KindNotFound:      fiber.StatusNotFound,
	vesting.KindConflict:      fiber.StatusConflict,
	vesting.KindInternal:      fiber.StatusInternalServerError,
}

// toError converts an engine or auth error into an Error.
func toError(err error) Error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := vesting.KindValidation
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			kind = vesting.KindNotFound
		case fiberErr.Code >= fiber.StatusInternalServerError:
			kind = vesting.KindInternal
		}
		return Error{Code: fiberErr.Code, Kind: kind, Message: fiberErr.Message}
	}

	switch {
	case errors.Is(err, auth.ErrMissingSignature),
		errors.Is(err, auth.ErrInvalidSigner),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired):
		return Error{Code: fiber.StatusUnauthorized, Kind: vesting.KindAuthorization, Message: err.Error()}
	}

	kind := vesting.KindOf(err)
	msg := err.Error()
	if kind == vesting.KindInternal {
		msg = "internal server error"
	}
	return Error{Code: kindStatus[kind], Kind: kind, Message: msg}
}
