package orchestrator

import (
	"net/http"

	"social-auth/internal/session"
)

// FailureMessage is the only failure detail clients ever see.
const FailureMessage = "AUTHENTICATION_FAILED"

// AuthResult is the response of every authentication attempt. StatusCode is
// the HTTP status the transport should use.
type AuthResult struct {
	StatusCode int             `json:"statusCode"`
	IsSuccess  bool            `json:"isSuccess"`
	Message    string          `json:"message,omitempty"`
	User       any             `json:"user,omitempty"`
	Tokens     *session.Tokens `json:"tokens,omitempty"`
	IsNewUser  bool            `json:"isNewUser,omitempty"`
	Config     map[string]any  `json:"config,omitempty"`
}

// Failure returns the uniform failure result.
func Failure() AuthResult {
	return AuthResult{
		StatusCode: http.StatusBadRequest,
		IsSuccess:  false,
		Message:    FailureMessage,
	}
}
