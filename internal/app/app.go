package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toko/internal/handlers"
	"toko/internal/middleware"
	"toko/internal/repositories"
	"toko/internal/services"
	"toko/internal/validation"
	"toko/internal/views"
	"toko/internal/workflow"
)

// Options carries the collaborators of the HTTP application.
type Options struct {
	Products  repositories.ProductRepository
	Users     repositories.UserRepository
	Publisher services.EventPublisher
	Logger    *slog.Logger
	JWTSecret string
	JWTTTL    time.Duration
}

// App is the assembled store application.
type App struct {
	Fiber    *fiber.App
	Auth     *services.AuthService
	Products *services.ProductService
}

// New wires services, handlers and middleware into a fiber application.
func New(opts Options) (*App, error) {
	engine, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}

	productValidator, err := validation.NewProductValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	productService := services.NewProductService(opts.Products, opts.Publisher, opts.Logger)
	authService := services.NewAuthService(opts.Users, opts.JWTSecret, opts.JWTTTL)
	productWorkflow := workflow.NewProductWorkflow(productService, productValidator)

	productHandler := handlers.NewProductHandler(productWorkflow, session.New(session.Config{
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	}))
	authHandler := handlers.NewAuthHandler(authService, opts.Logger)

	app := fiber.New(fiber.Config{
		Views:                 engine,
		ErrorHandler:          errorHandler,
		Immutable:             true,
		DisableStartupMessage: true,
	})

	// Method override must come first so the rewritten method routes correctly.
	app.Use(middleware.MethodOverride())
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authHandler.RegisterRoutes(app)
	productHandler.RegisterRoutes(app.Group("/products", middleware.AuthRequired(authService)))

	return &App{
		Fiber:    app,
		Auth:     authService,
		Products: productService,
	}, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(code).SendString(utils.StatusMessage(code))
}
