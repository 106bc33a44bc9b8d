package moodle

import (
	"context"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"

	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
)

// clientMethods are the explicit Client operations; Call refuses to forward
// them to the server.
var clientMethods = []string{
	"GetToken",
	"SetToken",
	"ConfigureProxy",
	"NewToken",
	"Upload",
	"Invoke",
	"Call",
}

// Call invokes a web-service function by name.
//
// method may be the function name itself (core_webservice_get_site_info) or
// its Go-style spelling (CoreWebserviceGetSiteInfo). The first element of
// args is sent as the function arguments; further elements are ignored.
// With no args an empty parameter set is sent.
func (c *Client) Call(ctx context.Context, method string, args ...any) (Result, error) {
	fn, err := FunctionName(method)
	if err != nil {
		return Result{}, err
	}

	var params any = Params{}
	if len(args) > 0 {
		params = args[0]
	}
	return c.Invoke(ctx, fn, params)
}

// FunctionName converts a method name into a web-service function name.
// Names that match an explicit Client method are rejected.
func FunctionName(method string) (string, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return "", wserrors.NewValidationError("method", "", "is required")
	}

	camel := strcase.ToCamel(method)
	for _, name := range clientMethods {
		if strings.EqualFold(camel, name) {
			return "", wserrors.NewValidationError("method", method, "is a client method, not a web-service function")
		}
	}

	if strings.IndexFunc(method, unicode.IsUpper) < 0 {
		return method, nil
	}
	return snakeName(method), nil
}

// snakeName splits a Go-style name on case boundaries only. Digits stay
// attached to the letters around them, so ModH5pactivityGetAttempts becomes
// mod_h5pactivity_get_attempts.
func snakeName(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
