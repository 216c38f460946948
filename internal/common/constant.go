package common

const (
	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName carries the request id in both directions.
	RequestIDHeaderName = "X-Request-Id"

	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "Bearer"
)
