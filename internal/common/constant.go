package common

// Header names attached to every outbound sync request.
const (
	// RequestIDHeaderName carries the queued action id; the server uses it as
	// an idempotency key.
	RequestIDHeaderName = "X-Request-ID"
	// DeviceIDHeaderName carries the installation id from the device identity.
	DeviceIDHeaderName = "X-Device-ID"
	// ContentTypeJSON is the content type of every sync request body.
	ContentTypeJSON = "application/json"
)
