// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// HTTP
	KeyRateLimited    = "http.rate_limited"
	KeyInternalError  = "http.internal_error"
	KeyRouteNotFound  = "http.route_not_found"
	KeyServiceHealthy = "http.healthy"
)

// ErrorKey maps a domain error code such as INSUFFICIENT_STOCK to its
// translation key.
func ErrorKey(code string) string {
	return "error." + code
}
