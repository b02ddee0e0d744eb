package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/cache"
	"github.com/bountyhub-app/bountyhub/internal/pkg/database"
	"github.com/bountyhub-app/bountyhub/internal/pkg/env"
	"github.com/bountyhub-app/bountyhub/internal/pkg/router"
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
	repository.InitializeFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, webhook payloads are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	logWebhookBacklog()

	return app
}

// logWebhookBacklog surfaces stuck events at startup for operator triage.
func logWebhookBacklog() {
	events, err := repository.GetGlobalRepositories().WebhookEvent.ListUnprocessed(context.Background(), 10)
	if err != nil {
		log.Printf("could not scan webhook backlog: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}
	log.Printf("%d webhook event(s) awaiting processing, oldest: %s (%s)",
		len(events), events[0].ProviderEventID, events[0].EventType)
}
