package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every failure as {success: false, error}. Unknown
// errors are logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	slog.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(ErrInternal())
}

type Error struct {
	Code    int    `json:"-"`
	Success bool   `json:"success"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status  int               `json:"-"`
	Success bool              `json:"success"`
	Message string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status:  fiber.StatusBadRequest,
		Message: "validation failed",
		Errors:  errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

func ErrEmptyMessage() Error {
	return NewError(fiber.StatusBadRequest, "Message cannot be empty")
}

func ErrInternal() Error {
	return NewError(fiber.StatusInternalServerError, "internal server error")
}

func ErrUnavailable(what string) Error {
	return NewError(fiber.StatusServiceUnavailable, fmt.Sprintf("%s is not available", what))
}
