package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/application/dto"
	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
)

// DocumentHandler emisión y ciclo de vida de comprobantes.
type DocumentHandler struct {
	orch  *billing.Orchestrator
	files *billing.DocumentFilesUseCase
	errs  *ErrorResponder
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(orch *billing.Orchestrator, files *billing.DocumentFilesUseCase, errs *ErrorResponder) *DocumentHandler {
	return &DocumentHandler{orch: orch, files: files, errs: errs}
}

// ValidateAndEmit godoc
// @Summary      Validar y emitir comprobante
// @Description  Acepta {document:{...}} o el objeto plano. Genera clave, XML y (si corresponde) firma y envío.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  dto.EmitResponse
// @Failure      400   {object}  dto.ValidationErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/documents/validate-and-emit [post]
func (h *DocumentHandler) ValidateAndEmit(c *fiber.Ctx) error {
	res, err := h.orch.Emit(c.UserContext(), GetUserID(c), c.Body())
	if err != nil {
		return h.errs.WriteEmit(c, err)
	}
	return c.JSON(dto.EmitResponse{
		Success:     true,
		XML:         res.XML,
		SignedXML:   res.SignedXML,
		DocumentKey: res.DocumentKey,
		Status:      res.Status,
	})
}

// Template estructura de ejemplo del cuerpo de emisión.
// GET /api/documents/template
func (h *DocumentHandler) Template(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": billing.Template()})
}

// Confirm godoc
// @Summary      Confirmar comprobante ante Hacienda
// @Description  Authorization lleva el token de Hacienda del llamador, no un JWT del servicio.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        key   path  string              true  "clave"
// @Param        body  body  dto.ConfirmRequest  true  "url"
// @Success      200   {object}  dto.DataResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/documents/{key}/confirm [post]
func (h *DocumentHandler) Confirm(c *fiber.Ctx) error {
	token, errResp := bearerToken(c)
	if errResp != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(errResp)
	}
	var in dto.ConfirmRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if strings.TrimSpace(in.URL) == "" {
		return h.errs.Write(c, domain.NewValidationError("url", "url es requerido"))
	}
	body, err := h.orch.Confirm(c.UserContext(), c.Params("key"), in.URL, token)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(dto.DataResponse{Success: true, Data: rawJSON(body)})
}

// Status godoc
// @Summary      Consultar estado en Hacienda
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        key   path  string  true  "clave"
// @Success      200   {object}  dto.StatusResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/documents/{key}/status [get]
func (h *DocumentHandler) Status(c *fiber.Ctx) error {
	out, err := h.orch.PollStatus(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	res := dto.StatusResponse{
		Success:      true,
		DocumentKey:  out.Document.DocumentKey,
		Status:       out.Document.Status,
		RemoteStatus: out.Document.RemoteStatus,
		Data:         out.Remote.Raw,
	}
	if out.Mensaje != nil {
		res.Message = out.Mensaje.DetalleMensaje
	}
	return c.JSON(res)
}

// Get registro vigente de la clave.
// GET /api/documents/:key
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	d, err := h.orch.Document(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(toDocumentResponse(d))
}

// List comprobantes del usuario.
// GET /api/documents?limit=&offset=
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.orch.Documents(c.UserContext(), GetUserID(c), page.Limit, page.Offset)
	if err != nil {
		return h.errs.Write(c, err)
	}
	out := make([]dto.DocumentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDocumentResponse(d))
	}
	return c.JSON(dto.ListResponse[dto.DocumentResponse]{
		Items: out,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Events historial de auditoría.
// GET /api/documents/:key/events
func (h *DocumentHandler) Events(c *fiber.Ctx) error {
	events, err := h.orch.Events(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	out := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, dto.EventResponse{
			Kind:       ev.Kind,
			FromStatus: ev.FromStatus,
			ToStatus:   ev.ToStatus,
			Detail:     ev.Detail,
			CreatedAt:  ev.CreatedAt,
		})
	}
	return c.JSON(out)
}

// Resubmit reintenta el envío de un comprobante pendiente o reabre uno en error.
// POST /api/documents/:key/resubmit
func (h *DocumentHandler) Resubmit(c *fiber.Ctx) error {
	d, err := h.orch.Resubmit(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(toDocumentResponse(d))
}

// DownloadXML XML del comprobante como adjunto.
// GET /api/documents/:key/xml
func (h *DocumentHandler) DownloadXML(c *fiber.Ctx) error {
	data, name, err := h.files.XML(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return attachment(c, "application/xml", name, data)
}

// DownloadPDF representación gráfica como adjunto.
// GET /api/documents/:key/pdf
func (h *DocumentHandler) DownloadPDF(c *fiber.Ctx) error {
	data, name, err := h.files.PDF(c.UserContext(), GetUserID(c), c.Params("key"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return attachment(c, "application/pdf", name, data)
}

// Email envía XML y PDF por correo.
// POST /api/documents/:key/email
func (h *DocumentHandler) Email(c *fiber.Ctx) error {
	var in dto.EmailRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	if err := h.files.Email(c.UserContext(), GetUserID(c), c.Params("key"), in.To); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

// TaxpayerHandler consulta de contribuyentes.
type TaxpayerHandler struct {
	orch *billing.Orchestrator
	errs *ErrorResponder
}

// NewTaxpayerHandler construye el handler.
func NewTaxpayerHandler(orch *billing.Orchestrator, errs *ErrorResponder) *TaxpayerHandler {
	return &TaxpayerHandler{orch: orch, errs: errs}
}

// Lookup godoc
// @Summary      Actividad económica de un contribuyente
// @Tags         taxpayers
// @Produce      json
// @Param        identification  path  string  true  "cédula"
// @Success      200   {object}  dto.DataResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/taxpayers/{identification} [get]
func (h *TaxpayerHandler) Lookup(c *fiber.Ctx) error {
	body, err := h.orch.LookupTaxpayer(c.UserContext(), c.Params("identification"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(dto.DataResponse{Success: true, Data: rawJSON(body)})
}

func attachment(c *fiber.Ctx, contentType, filename string, data []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(data)
}

// rawJSON conserva cuerpos JSON remotos; cualquier otro contenido se envía como cadena.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	s, _ := json.Marshal(string(body))
	return s
}

func toDocumentResponse(d *entity.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:                d.ID,
		DocumentKey:       d.DocumentKey,
		DocumentType:      d.DocumentType,
		ConsecutiveNumber: d.ConsecutiveNumber,
		Status:            d.Status,
		RemoteStatus:      d.RemoteStatus,
		IssuedAt:          d.IssuedAt,
		SubmittedAt:       d.SubmittedAt,
		RespondedAt:       d.RespondedAt,
		LastPolledAt:      d.LastPolledAt,
		Response:          rawJSON(d.Response),
		ResubmissionOf:    d.ResubmissionOf,
		CreatedAt:         d.CreatedAt,
	}
}
