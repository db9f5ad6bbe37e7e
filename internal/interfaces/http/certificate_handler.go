package http

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/application/dto"
)

const maxCertificateBytes = 1 << 20

// CertificateHandler registro de certificados de firma del usuario.
type CertificateHandler struct {
	uc   *billing.CertificateUseCase
	errs *ErrorResponder
}

// NewCertificateHandler construye el handler.
func NewCertificateHandler(uc *billing.CertificateUseCase, errs *ErrorResponder) *CertificateHandler {
	return &CertificateHandler{uc: uc, errs: errs}
}

// Upload godoc
// @Summary      Cargar certificado .p12
// @Tags         certificates
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        certificate  formData  file    true   "archivo .p12"
// @Param        password     formData  string  true   "contraseña del .p12"
// @Param        name         formData  string  false  "nombre descriptivo"
// @Success      201   {object}  dto.CertificateResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/certificates [post]
func (h *CertificateHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("certificate")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "archivo 'certificate' requerido"})
	}
	if fh.Size > maxCertificateBytes {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "el certificado excede 1 MB"})
	}
	f, err := fh.Open()
	if err != nil {
		return h.errs.Write(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxCertificateBytes))
	if err != nil {
		return h.errs.Write(c, err)
	}

	res, err := h.uc.Upload(c.UserContext(), GetUserID(c), c.FormValue("name"), data, c.FormValue("password"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// List certificados del usuario.
// GET /api/certificates
func (h *CertificateHandler) List(c *fiber.Ctx) error {
	list, err := h.uc.List(c.UserContext(), GetUserID(c))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(list)
}

// Delete elimina un certificado.
// DELETE /api/certificates/:id
func (h *CertificateHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetUserID(c), c.Params("id")); err != nil {
		return h.errs.Write(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Get godoc
// @Summary      Detalle de un certificado
// @Tags         certificates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "id del certificado"
// @Success      200   {object}  dto.CertificateResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/certificates/{id}/details [get]
func (h *CertificateHandler) Get(c *fiber.Ctx) error {
	res, err := h.uc.Get(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(res)
}

// Update godoc
// @Summary      Renombrar o activar/desactivar un certificado
// @Description  Activar un certificado desactiva los demás del usuario.
// @Tags         certificates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                        true  "id del certificado"
// @Param        body  body  dto.UpdateCertificateRequest  true  "cambios"
// @Success      200   {object}  dto.CertificateResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/certificates/{id} [put]
func (h *CertificateHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateCertificateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errInvalidBody)
	}
	res, err := h.uc.Update(c.UserContext(), GetUserID(c), c.Params("id"), req)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(res)
}

// Activate godoc
// @Summary      Activar un certificado
// @Tags         certificates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "id del certificado"
// @Success      200   {object}  dto.CertificateResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/certificates/{id}/activate [put]
func (h *CertificateHandler) Activate(c *fiber.Ctx) error {
	res, err := h.uc.Activate(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(res)
}

// Validate godoc
// @Summary      Verificar que un certificado puede firmar
// @Tags         certificates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "id del certificado"
// @Success      200   {object}  dto.CertificateValidationResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/certificates/{id}/validate [post]
func (h *CertificateHandler) Validate(c *fiber.Ctx) error {
	res, err := h.uc.Validate(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(res)
}

// Stats resumen de certificados del usuario.
// GET /api/certificates/stats/overview
func (h *CertificateHandler) Stats(c *fiber.Ctx) error {
	res, err := h.uc.Stats(c.UserContext(), GetUserID(c))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(res)
}
