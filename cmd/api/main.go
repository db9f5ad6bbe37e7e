package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "github.com/jhoicas/hacienda-api/docs"
	"github.com/jhoicas/hacienda-api/internal/application/analytics"
	"github.com/jhoicas/hacienda-api/internal/application/auth"
	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda/signer"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/mail"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/memory"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/hacienda-api/internal/infrastructure/pdf"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/postgres"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
	httpRouter "github.com/jhoicas/hacienda-api/internal/interfaces/http"
	"github.com/jhoicas/hacienda-api/pkg/config"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// @title                       Hacienda API
// @version                     1.0
// @description                 Emisión, firma y seguimiento de comprobantes electrónicos de Costa Rica (v4.4).
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("hacienda_env", cfg.Hacienda.Env).
		Str("signer", cfg.Hacienda.Signer).
		Str("storage", cfg.Storage).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		userRepo      repository.UserRepository
		analyticsRepo repository.AnalyticsRepository
		certRepo      repository.CertificateRepository
		docRepo       repository.DocumentRepository
		txRunner      billing.DocumentTxRunner
	)
	switch cfg.Storage {
	case "memory":
		store := memory.NewStore()
		userRepo, certRepo, docRepo, txRunner = store.Users(), store.Certificates(), store.Documents(), store
		analyticsRepo = store.Analytics()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		userRepo = postgres.NewUserRepository(pool)
		certRepo = postgres.NewCertificateRepository(pool)
		docRepo = postgres.NewDocumentRepository(pool)
		txRunner = postgres.NewTxRunner(pool)
		analyticsRepo = postgres.NewAnalyticsRepository(pool)
	}

	var box *secrets.Box
	if cfg.Secrets.CertEncryptionKey != "" {
		box, err = secrets.NewBox(cfg.Secrets.CertEncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("llave de servicio")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gateway := infrahacienda.NewClient(cfg.Hacienda, nil, log)

	var signing billing.SigningCapability = billing.NewSimulatedSigning()
	if cfg.Hacienda.Signer == config.SignerReal {
		dsig := signer.NewDigitalSignatureService(cfg.Hacienda.PolicyHash)
		if cfg.Hacienda.C14N == config.C14NExclusive {
			dsig.WithExclusiveC14N()
		}
		signing = billing.NewRealSigning(
			infrahacienda.NewXMLBuilderService(),
			dsig,
			billing.NewCertificateVault(certRepo, box),
			cfg.Hacienda.ProviderID,
			m,
		)
	}

	tracker := billing.NewTracker(docRepo, txRunner, log, m)
	orchestrator := billing.NewOrchestrator(cfg.Hacienda, signing, gateway, tracker, docRepo, log, m)

	var mailer billing.MailSender
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTPSender(cfg.SMTP)
	}
	documentFiles := billing.NewDocumentFilesUseCase(docRepo, infrapdf.NewMarotoPDFGenerator(), mailer, log)
	certificates := billing.NewCertificateUseCase(certRepo, box, log)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	production := cfg.App.Env == "production"
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 45,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    2 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Hacienda API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "haciendaEnv": cfg.Hacienda.Env})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:        authUC,
		Orchestrator:  orchestrator,
		DocumentFiles: documentFiles,
		Certificates:  certificates,
		Summary:       analytics.NewSummaryUseCase(analyticsRepo),
		JWTSecret:     cfg.JWT.Secret,
		Production:    production,
		Log:           log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := gateway.Logout(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("cerrar sesión en Hacienda")
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("servidor HTTP finalizado")
		os.Exit(1)
	}
	log.Info().Msg("aplicación detenida")
}
