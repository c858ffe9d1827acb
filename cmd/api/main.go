package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/hka-connector/internal/application/auth"
	"github.com/jhoicas/hka-connector/internal/application/billing"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	infrahka "github.com/jhoicas/hka-connector/internal/infrastructure/hka"
	"github.com/jhoicas/hka-connector/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/hka-connector/internal/infrastructure/pdf"
	"github.com/jhoicas/hka-connector/internal/infrastructure/postgres"
	"github.com/jhoicas/hka-connector/internal/infrastructure/richtext"
	httpRouter "github.com/jhoicas/hka-connector/internal/interfaces/http"
	"github.com/jhoicas/hka-connector/pkg/config"
	"github.com/jhoicas/hka-connector/pkg/logger"
)

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
		Msg("iniciando conector HKA")

	loc, err := cfg.HKA.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.HKA.Timezone).Msg("zona horaria HKA")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	attachmentRepo := postgres.NewAttachmentRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	metrics.Register(nil)

	// Cliente HKA: token por empresa persistido en hka_tokens
	hkaClient := infrahka.NewClient(infrahka.ClientConfig{
		TestURL:         cfg.HKA.TestURL,
		ProdURL:         cfg.HKA.ProdURL,
		AuthTimeout:     cfg.HKA.AuthTimeout,
		SendTimeout:     cfg.HKA.SendTimeout,
		DownloadTimeout: cfg.HKA.DownloadTimeout,
		Location:        loc,
	}, tokenRepo, log.Component("hka_client"))

	builder := domainhka.NewPayloadBuilder(domainhka.BuilderConfig{
		DefaultOperationType: cfg.HKA.DefaultOperationType,
		ImmediateTermID:      cfg.HKA.ImmediateTermID,
		UnitCode:             cfg.HKA.UnitCode,
		PDFSection:           cfg.HKA.PDFSection,
		Location:             loc,
	}, time.Now)

	hkaService := billing.NewHKAService(
		invoiceRepo, attachmentRepo, companyRepo, txRunner, hkaClient, builder,
		billing.HKAServiceConfig{MaxRetries: cfg.HKA.MaxRetries, BatchLimit: cfg.HKA.BatchLimit},
		log.Component("hka_service"),
	).
		WithNotesExtractor(richtext.ExtractBlocks).
		WithPreviewGenerator(infrapdf.NewMarotoPreviewGenerator())

	// Scheduler: las pasadas manuales por HTTP comparten sus candados
	scheduler := billing.NewScheduler(hkaService, log.Component("hka_scheduler"))
	if cfg.HKA.SchedulerEnabled {
		if err := scheduler.Start(cfg.HKA.SendSchedule, cfg.HKA.DownloadSchedule); err != nil {
			log.Fatal().Err(err).Msg("scheduler HKA")
		}
	}

	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.HKA.SendTimeout + cfg.HKA.DownloadTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "HKA Connector API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Auth:      authUC,
		HKA:       hkaService,
		Passes:    scheduler,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	scheduler.Stop()

	log.Info().Msg("conector detenido")
}
