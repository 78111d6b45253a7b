package handler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailburst/mailburst/internal/mailer"
	"github.com/redis/go-redis/v9"
)

const (
	readinessTimeout   = 2 * time.Second
	systemCheckTimeout = 5 * time.Second
)

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, chain *mailer.Chain) {
	app.Get("/health", HealthHandler(sqlDB, rdb, chain))
	app.Get("/system-check", SystemCheckHandler(chain))
}

func HealthHandler(sqlDB *sql.DB, rdb *redis.Client, chain *mailer.Chain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgStatus := "ok"
		if err := sqlDB.PingContext(ctx); err != nil {
			pgStatus = "down"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
			}
		}

		status := "ok"
		statusCode := fiber.StatusOK
		if pgStatus != "ok" {
			status = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}

		transports := 0
		if chain != nil {
			transports = len(chain.Transports())
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status":     status,
			"transports": transports,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"checks": fiber.Map{
				"postgres": pgStatus,
				"redis":    redisStatus,
			},
		})
	}
}

// SystemCheckHandler probes every configured transport and reports which
// delivery paths are usable, with hints for the ones that are not.
func SystemCheckHandler(chain *mailer.Chain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), systemCheckTimeout)
		defer cancel()

		type transportCheck struct {
			Name  string `json:"name"`
			OK    bool   `json:"ok"`
			Error string `json:"error,omitempty"`
		}

		checks := make([]transportCheck, 0)
		recommendations := make([]string, 0)
		usable := 0

		if chain != nil {
			for _, transport := range chain.Transports() {
				check := transportCheck{Name: transport.Name(), OK: true}
				if err := transport.Verify(ctx); err != nil {
					check.OK = false
					check.Error = err.Error()
					recommendations = append(recommendations, transportRecommendation(transport.Name()))
				} else {
					usable++
				}
				checks = append(checks, check)
			}
		}

		statusCode := fiber.StatusOK
		if usable == 0 {
			statusCode = fiber.StatusServiceUnavailable
			recommendations = append(recommendations,
				"no transport is usable; deliveries will fail until one is fixed")
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"usableTransports": usable,
			"transports":       checks,
			"recommendations":  recommendations,
		})
	}
}

func transportRecommendation(name string) string {
	switch name {
	case "sendmail":
		return "install a sendmail-compatible MTA or adjust SENDMAIL_PATH"
	case "smtp":
		return "check SMTP_HOST/SMTP_PORT and relay credentials"
	case "api":
		return "check MAILER_API_URL and upstream availability"
	case "ses":
		return "check SES credentials and region"
	case "file":
		return "ensure the sink directory exists and is writable"
	default:
		return fmt.Sprintf("check configuration for transport %q", name)
	}
}
