package common

// Header names shared by the HTTP clients and the reference server.
const (
	// AuthorizationHeader carries "Bearer <identity token>" for federated principals.
	AuthorizationHeader = "Authorization"
	// WalletAddressHeader carries the external wallet address for wallet principals.
	WalletAddressHeader = "X-Wallet-Address"
	// RequestIDHeader correlates client and server log lines.
	RequestIDHeader = "X-Request-ID"
	// SessionCookieName is the cookie fallback for the identity token.
	SessionCookieName = "session"
)

// Wire-level error codes in 4xx JSON bodies: {"error": "<code>"}.
const (
	CodeNameTaken         = "NameTaken"
	CodeInvalidFormat     = "InvalidFormat"
	CodeInsufficientFunds = "InsufficientFunds"
	CodeAlreadyLinked     = "AlreadyLinked"
	CodeRateLimited       = "rate_limited"
	CodeBlacklisted       = "blacklisted"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)
