package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hacienda-api/internal/application/analytics"
	"github.com/jhoicas/hacienda-api/internal/application/auth"
	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/pkg/jwt"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC        *auth.AuthUseCase
	Orchestrator  *billing.Orchestrator
	DocumentFiles *billing.DocumentFilesUseCase
	Certificates  *billing.CertificateUseCase
	Summary       *analytics.SummaryUseCase
	JWTSecret     string
	Production    bool
	Log           *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	errs := &ErrorResponder{Production: deps.Production, Log: deps.Log}
	requireJWT := AuthMiddleware(deps.JWTSecret)
	emisor := RequireRole(jwt.RoleEmisor, jwt.RoleAdmin)

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC, errs)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Comprobantes
	docs := api.Group("/documents")
	docHandler := NewDocumentHandler(deps.Orchestrator, deps.DocumentFiles, errs)
	analyticsHandler := NewAnalyticsHandler(deps.Summary, errs)
	docs.Get("/template", docHandler.Template)
	docs.Get("/summary", requireJWT, analyticsHandler.Summary)
	docs.Post("/validate-and-emit", requireJWT, emisor, docHandler.ValidateAndEmit)
	docs.Get("/", requireJWT, docHandler.List)
	docs.Get("/:key", requireJWT, docHandler.Get)
	docs.Get("/:key/status", requireJWT, docHandler.Status)
	docs.Get("/:key/events", requireJWT, docHandler.Events)
	docs.Get("/:key/xml", requireJWT, docHandler.DownloadXML)
	docs.Get("/:key/pdf", requireJWT, docHandler.DownloadPDF)
	docs.Post("/:key/email", requireJWT, docHandler.Email)
	docs.Post("/:key/resubmit", requireJWT, emisor, docHandler.Resubmit)
	// El Authorization de confirm es el token de Hacienda del llamador.
	docs.Post("/:key/confirm", docHandler.Confirm)

	// Contribuyentes (público, passthrough)
	taxpayerHandler := NewTaxpayerHandler(deps.Orchestrator, errs)
	api.Get("/taxpayers/:identification", taxpayerHandler.Lookup)

	// Certificados
	certs := api.Group("/certificates", requireJWT)
	certHandler := NewCertificateHandler(deps.Certificates, errs)
	certs.Post("/", emisor, certHandler.Upload)
	certs.Get("/", certHandler.List)
	certs.Get("/stats/overview", certHandler.Stats)
	certs.Get("/:id/details", certHandler.Get)
	certs.Put("/:id", emisor, certHandler.Update)
	certs.Put("/:id/activate", emisor, certHandler.Activate)
	certs.Post("/:id/validate", certHandler.Validate)
	certs.Delete("/:id", certHandler.Delete)
}
