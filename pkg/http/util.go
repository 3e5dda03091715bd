package http

import (
	"strings"

	xutil "FinScreen/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryInt parses an integer query parameter or returns def.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// QueryList reads a comma-separated query parameter, also accepting the
// parameter repeated (?r=BUY&r=SELL).
func QueryList(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		out = append(out, xutil.SplitAndTrim(raw, ",")...)
	}
	return out
}

// QueryBool reads a boolean query parameter; "1", "true" and "yes" are true.
func QueryBool(c echo.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.QueryParam(name))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
