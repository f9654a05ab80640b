package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: liveness, health and metrics.
var publicPaths = map[string]bool{
	"/":          true,
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. It matches on the registered route, so unknown paths still
// go through auth and get 401 rather than leaking a 404.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
