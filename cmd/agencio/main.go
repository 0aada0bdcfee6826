package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/cache"
	"github.com/agenciohq/agencio/internal/pkg/database"
	"github.com/agenciohq/agencio/internal/pkg/env"
	"github.com/agenciohq/agencio/internal/pkg/jobqueue"
	"github.com/agenciohq/agencio/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Shut the job queue down before the HTTP listener so in-flight intent
	// retries finish instead of being re-queued as stuck.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Println("Shutting down...")
		jobqueue.GetManager().Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	// Background workers for intent retries and payload archival.
	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName: "agencio",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
