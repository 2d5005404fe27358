package server

import (
	"log"

	"casebook/internal/bootstrap"
	"casebook/internal/config"
	"casebook/internal/pkg/serverutils"
	"casebook/internal/view"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB
		Views:     view.NewEngine(),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	// JSON API: bearer tokens, no cookies.
	api := app.Group("/api", serverutils.ErrorHandlerMiddleware())
	c.AuthController.RegisterRoutes(api)
	c.CaseController.RegisterRoutes(api)
	api.Use(func(ctx *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	// Browser pages: every request carries its client's session.
	pages := app.Group("/", serverutils.ClientSession(c.SessionRegistry, serverutils.SessionConfig{
		CookieName:     cfg.Session.CookieName,
		Secure:         cfg.IsProduction(),
		StartupTimeout: cfg.Session.StartupTimeout,
	}))
	c.SessionSocketController.RegisterRoutes(pages)
	c.PageController.RegisterRoutes(pages)

	app.Use(func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).Render("not_found", fiber.Map{
			"Title":   "Not found",
			"Session": serverutils.CurrentSession(ctx),
		}, view.Layout)
	})
}
