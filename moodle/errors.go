package moodle

import (
	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
)

// Error kinds returned by the client (re-exported from internal/errors).
type (
	// AuthError is returned before any network activity when no token is set.
	AuthError = wserrors.AuthError

	// TransportError is returned when the HTTP exchange does not end in status 200.
	TransportError = wserrors.TransportError

	// RemoteError carries the message of a server-side exception envelope.
	RemoteError = wserrors.RemoteError

	// DecodeError is returned when a status-200 body is not valid JSON.
	DecodeError = wserrors.DecodeError

	// ValidationError is returned for input the client cannot encode or dispatch.
	ValidationError = wserrors.ValidationError
)

var (
	IsAuth       = wserrors.IsAuth
	IsTransport  = wserrors.IsTransport
	IsRemote     = wserrors.IsRemote
	IsValidation = wserrors.IsValidation
	IsDecode     = wserrors.IsDecode
	StatusCode   = wserrors.StatusCode
)

// remoteErrorFrom inspects a decoded payload for an error envelope.
//
// Web-service functions report failures as {exception, errorcode, message,
// debuginfo}. The login and upload scripts use {error, errorcode, debuginfo}
// instead; those are only recognized when scripts is true, since a function
// result may legitimately carry an "error" field.
func remoteErrorFrom(v any, scripts bool) (*RemoteError, string) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ""
	}

	if exception := stringField(m, "exception"); exception != "" {
		return &RemoteError{
			Exception: exception,
			ErrorCode: stringField(m, "errorcode"),
			Message:   stringField(m, "message"),
		}, stringField(m, "debuginfo")
	}

	if scripts {
		if msg := stringField(m, "error"); msg != "" {
			return &RemoteError{
				ErrorCode: stringField(m, "errorcode"),
				Message:   msg,
			}, stringField(m, "debuginfo")
		}
	}

	return nil, ""
}
