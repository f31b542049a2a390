package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg/config"
	errprocess "transcoding_service/pkg/err"
	"transcoding_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// ServiceName reported by the index endpoint
	ServiceName = "transcoding_service"
	// Version reported by the index endpoint
	Version = "1.0.0"
)

var endpoints = []string{
	"GET /metrics",
	"GET /metrics/prometheus",
	"GET /counts",
	"GET /jobs?status=&start=&end=&asc=",
	"GET /jobs/:id",
	"GET /jobs/:id/logs?start=&end=",
	"GET /jobs/:id/ws",
	"POST /jobs { url }",
	"PUT /jobs/:id/cancel",
	"DELETE /jobs?grace=1000&status=&limit=",
	"DELETE /jobs/:id",
}

// ConnectCheck service index
func ConnectCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        ServiceName,
		"version":     Version,
		"description": "asynchronous media transcoding service",
		"endpoints":   endpoints,
	})
}

// DebugLogFlag toggle debug log flag
func DebugLogFlag(c *fiber.Ctx) error {
	// prase payload
	query, err := url.ParseQuery(string(c.Context().QueryArgs().QueryString()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query")
	}
	statusStr := query.Get("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("service[%s]: debug mode is : %t", ServiceName, status))
}

// ErrorHandler maps domain errors to status codes, body is {code, error}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusCode(err)
	msg := err.Error()
	if code >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		if config.IsProduction() {
			msg = "Internal server error"
		}
	}
	return c.Status(code).JSON(fiber.Map{"code": code, "error": msg})
}

// StatusCode status code for err
func StatusCode(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var inputErr *domain.InputError
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.As(err, &inputErr):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrJobActive):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrJobNotActive):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return errprocess.StatusCode(err)
	}
}
