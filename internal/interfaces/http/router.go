package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/hka-connector/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Auth      authOperations
	HKA       hkaOperations
	Passes    passTrigger
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Métricas Prometheus (público, lo consume el scraper interno)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Auth: login público, alta de operadores solo admin
	authHandler := NewAuthHandler(deps.Auth)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/operators", AuthMiddleware(deps.JWTSecret), RequireRole(jwt.RoleAdmin), authHandler.RegisterOperator)

	// Rutas protegidas (requieren Bearer Token)
	hka := api.Group("/hka", AuthMiddleware(deps.JWTSecret))
	h := NewHKAHandler(deps.HKA, deps.Passes)

	adminOnly := RequireRole(jwt.RoleAdmin)
	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleOperator)

	// Pasadas manuales (solo admin)
	hka.Post("/passes/send", adminOnly, h.RunSendPass)
	hka.Post("/passes/download", adminOnly, h.RunDownloadPass)

	// Facturas
	invoices := hka.Group("/invoices")
	invoices.Get("/:id", anyRole, h.Status)
	invoices.Get("/:id/preview.pdf", anyRole, h.Preview)
	invoices.Post("/:id/send", adminOnly, h.Send)
	invoices.Post("/:id/enqueue", adminOnly, h.Enqueue)
	invoices.Post("/:id/requeue", adminOnly, h.Requeue)
}
