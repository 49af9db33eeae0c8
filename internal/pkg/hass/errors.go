package hass

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable wraps connection-level failures against the hub.
	ErrUnreachable = errors.New("home assistant unreachable")
	// ErrIntegrationNotInstalled means the desktop app integration does not
	// answer on its API paths (HTTP 404 from ping or registration).
	ErrIntegrationNotInstalled = errors.New("desktop app integration not installed")
	// ErrUnauthorized means the access token was rejected.
	ErrUnauthorized = errors.New("access token rejected")
	// ErrMalformedResponse means a successful registration reply lacked the
	// webhook id.
	ErrMalformedResponse = errors.New("registration response missing webhook_id")
	// ErrNotRegistered means a webhook call was attempted before a webhook
	// id was configured.
	ErrNotRegistered = errors.New("device not registered, no webhook id")
	// ErrWebhookExpired is the hub's 410 Gone: the webhook id is no longer
	// valid and the device must re-register.
	ErrWebhookExpired = errors.New("webhook expired")
	// ErrIntegrationRemoved is a 404 from the webhook endpoint: the hub no
	// longer hosts the webhook at all.
	ErrIntegrationRemoved = errors.New("webhook removed from home assistant")
)

// RegistrationRejectedError is a logical rejection carried in a 2xx
// registration reply.
type RegistrationRejectedError struct {
	Reason string
}

func (e *RegistrationRejectedError) Error() string {
	return fmt.Sprintf("registration rejected: %s", e.Reason)
}

// PushError is any webhook failure that is not expiry or removal.
type PushError struct {
	StatusCode int
	Body       string
}

func (e *PushError) Error() string {
	return fmt.Sprintf("sensor push failed (%d): %s", e.StatusCode, e.Body)
}
