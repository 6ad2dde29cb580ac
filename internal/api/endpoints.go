package api

// HTTP routes
const (
	AuthLogin          = "/api/auth/login"
	AuthSendCode       = "/api/auth/send-code"
	AuthChangePassword = "/api/auth/change-password"
	AuthMe             = "/api/auth/me"
	AuthRegister       = "/api/auth/register"
	AuthLogout         = "/api/auth/logout"

	Users        = "/api/users"
	AdminMetrics = "/api/admin/metrics"
)

// Identity gRPC service
const (
	IdentityService    = "auth.Identity"
	IdentityIntrospect = "/auth.Identity/Introspect"
	IdentityWhoAmI     = "/auth.Identity/WhoAmI"
)

// RotationAllowList holds the routes a session that must change its
// password may still reach.
var RotationAllowList = map[string]bool{
	AuthChangePassword: true,
	AuthMe:             true,
	AuthLogout:         true,
}

// PublicMethods are gRPC methods served without an authenticated caller.
var PublicMethods = map[string]bool{
	IdentityIntrospect: true,
}
