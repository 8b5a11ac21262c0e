package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health reports "ok" when every check passes and 503 otherwise, naming the
// failing dependencies.  Load balancers poll it.
func Health(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		if code != http.StatusOK {
			return c.JSON(code, echo.Map{"status": "unavailable", "checks": status})
		}
		return c.JSON(code, echo.Map{"status": "ok", "checks": status})
	}
}
