package router

import (
	"transcoding_service/internal/transcoding/api/handlers"
	"transcoding_service/internal/transcoding/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FilesConfig static artifact browsing
type FilesConfig struct {
	// Prefix url prefix, e.g. files
	Prefix string
	// Root directory served under Prefix
	Root string
}

// NewApp fiber app with the json error handler installed
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      handlers.ServiceName,
		ErrorHandler: handlers.ErrorHandler,
	})
}

// RegisterRoutes 注册 job 相关的路由
func RegisterRoutes(app *fiber.App, jobHandler *handlers.JobHandler, files FilesConfig) {
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)

	app.Get("/metrics", jobHandler.Metrics)
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/counts", jobHandler.Counts)

	jobRoutes := app.Group("/jobs")
	jobRoutes.Get("/", jobHandler.ListJobs)
	jobRoutes.Post("/", jobHandler.CreateJob)
	jobRoutes.Delete("/", jobHandler.CleanJobs)
	jobRoutes.Get("/:id", jobHandler.GetJob)
	jobRoutes.Get("/:id/logs", jobHandler.GetLogs)
	jobRoutes.Get("/:id/ws", handlers.RequireUpgrade, websocket.New(jobHandler.WatchJob))
	jobRoutes.Put("/:id/cancel", jobHandler.CancelJob)
	jobRoutes.Delete("/:id", jobHandler.DeleteJob)

	if files.Root != "" {
		app.Static("/"+files.Prefix, files.Root, fiber.Static{
			Browse: true,
			Next: func(c *fiber.Ctx) bool {
				return storage.InProgress(c.Path())
			},
		})
	}
}
