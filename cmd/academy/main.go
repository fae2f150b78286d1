package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/academyhq/academy-server/internal/pkg/cache"
	"github.com/academyhq/academy-server/internal/pkg/database"
	"github.com/academyhq/academy-server/internal/pkg/env"
	"github.com/academyhq/academy-server/internal/pkg/pending"
	"github.com/academyhq/academy-server/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Staging store singleton; starts the sweeper when the in-process
	// backend is selected.
	pending.GetStore()

	app := fiber.New(fiber.Config{
		AppName: "academy-server",
	})

	app.Use(recover.New(), logger.New(), favicon.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
