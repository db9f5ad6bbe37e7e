package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hacienda-api/internal/application/analytics"
)

// AnalyticsHandler resumen de comprobantes del usuario.
type AnalyticsHandler struct {
	uc   *analytics.SummaryUseCase
	errs *ErrorResponder
}

// NewAnalyticsHandler construye el handler.
func NewAnalyticsHandler(uc *analytics.SummaryUseCase, errs *ErrorResponder) *AnalyticsHandler {
	return &AnalyticsHandler{uc: uc, errs: errs}
}

// Summary godoc
// @Summary      Resumen de comprobantes del día y del mes
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.DocumentSummaryResponse
// @Router       /api/documents/summary [get]
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	out, err := h.uc.GetSummary(c.UserContext(), GetUserID(c))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(out)
}
