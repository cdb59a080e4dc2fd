package common

// RequestIDHeaderName is the HTTP header used to carry a request id in both
// directions.
const RequestIDHeaderName = "X-Request-ID"

// DefaultRole is assigned to every newly registered user.
const DefaultRole = "user"
