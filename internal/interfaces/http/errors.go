package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hacienda-api/internal/application/dto"
	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// ErrorResponder traduce errores de dominio a respuestas HTTP.
// En producción los 500 llevan un mensaje genérico.
type ErrorResponder struct {
	Production bool
	Log        *logger.Logger
}

// Status código HTTP y código de error para err.
func Status(err error) (int, string) {
	var (
		ve *domain.ValidationError
		ke *domain.KeyFormatError
		se *domain.SignatureError
		ce *domain.CertificateError
		he *domain.HaciendaError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "VALIDATION"
	case errors.As(err, &ke):
		return fiber.StatusBadRequest, "KEY_FORMAT"
	case errors.As(err, &se):
		return fiber.StatusBadRequest, "SIGNATURE"
	case errors.As(err, &ce), errors.Is(err, domain.ErrNoActiveCertificate):
		return fiber.StatusBadRequest, "CERTIFICATE"
	case errors.As(err, &he):
		return fiber.StatusBadGateway, "HACIENDA"
	case errors.Is(err, domain.ErrOrdering):
		return fiber.StatusConflict, "ORDERING"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrEmailAlreadyExists):
		return fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

// Write responde {code, message}.
func (r *ErrorResponder) Write(c *fiber.Ctx, err error) error {
	status, code := Status(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		if r.Log != nil {
			r.Log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		}
		if r.Production {
			msg = "error interno del servidor"
		}
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

// WriteEmit igual que Write, salvo que los errores de entrada conservan el formato
// {success:false, error, field} del validador.
func (r *ErrorResponder) WriteEmit(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationErrorResponse{Error: ve.Message, Field: ve.Field})
	}
	var ke *domain.KeyFormatError
	if errors.As(err, &ke) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationErrorResponse{Error: ke.Error(), Field: ke.Field})
	}
	return r.Write(c, err)
}
