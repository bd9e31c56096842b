package main

// @title Telegram to WhatsApp Radar Relay
// @version 1.0.0
// @description Relays messages from a Telegram source into a WhatsApp group and exposes the session state

// @host localhost:7001
// @BasePath /

// @securityDefinitions.apikey AdminSecret
// @in header
// @name X-Admin-Secret
// @description Admin secret key for control routes

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/auth"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/env"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/router"

	"github.com/makc56com-code/tg-wa-bridge-sub000/internal"
)

func main() {
	cfg := env.LoadConfig()

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler: router.HttpErrorHandler,
		BodyLimit:    router.BodyLimitBytes(),
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, " + auth.AdminSecretHeader,
		AllowMethods: "GET,POST",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router RealIP
	app.Use(router.HttpRealIP())

	app.Get("/favicon.ico", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Running Startup Tasks
	a, err := internal.Startup(cfg)
	if err != nil {
		log.Print(nil).Fatal("Startup failed: " + err.Error())
	}

	// Load Internal Routes
	internal.Routes(app, a.Bridge, internal.RouteOptions{
		AdminSecret:     auth.AdminSecretKey,
		TelegramEnabled: a.Telegram != nil,
	})

	// Running Routines Tasks
	internal.Routines(c, a)

	// Start Server
	go func() {
		if err := app.Listen(cfg.ServerAddress + ":" + cfg.ServerPort); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).WithError(err).Error("HTTP server shutdown failed")
	}

	<-c.Stop().Done()
	a.Shutdown(ctxShutdown)
	log.Print(nil).Info("Shutdown complete")
}
