package dto

import "net/http"

// Error code constants returned by the gateway.
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "ERR_TOKEN_EXPIRED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"

	ErrCodeNotFound = "ERR_NOT_FOUND"

	// Upstream codes describe failures of the remote membership API.
	ErrCodeUpstream       = "ERR_UPSTREAM"
	ErrCodeUpstreamFormat = "ERR_UPSTREAM_FORMAT"
	ErrCodeTimeout        = "ERR_TIMEOUT"
)

// ErrorCodeHTTPStatus maps gateway error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeInvalidCredentials: http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,

	ErrCodeNotFound: http.StatusNotFound,

	ErrCodeUpstream:       http.StatusBadGateway,
	ErrCodeUpstreamFormat: http.StatusBadGateway,
	ErrCodeTimeout:        http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to gateway codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"PAYMENT_METHOD_NOT_FOUND": ErrCodeNotFound,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_THEME":            ErrCodeInvalidInput,
	"INVALID_MEMBER_STATUS":    ErrCodeInvalidInput,
	"UNAUTHORIZED":             ErrCodeUnauthorized,
	"NOT_AUTHENTICATED":        ErrCodeUnauthorized,
	"MISSING_USER_ID":          ErrCodeUnauthorized,
	"INVALID_CREDENTIALS":      ErrCodeInvalidCredentials,
	"SESSION_EXPIRED":          ErrCodeTokenExpired,
	"FORBIDDEN":                ErrCodeForbidden,
	"REQUEST_FAILED":           ErrCodeUpstream,
	"UNEXPECTED_FORMAT":        ErrCodeUpstreamFormat,
}

// NormalizeErrorCode converts a domain error code to a gateway code.
// Codes already in ERR_ form pass through.
func NormalizeErrorCode(code string) string {
	if mapped, ok := DomainErrorCodeMapping[code]; ok {
		return mapped
	}
	if len(code) > 4 && code[:4] == "ERR_" {
		return code
	}
	return ErrCodeInternal
}
