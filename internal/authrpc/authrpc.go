// Package authrpc names the gRPC auth service shared by the server and the
// CLI client. Requests and responses are google.protobuf.Struct values keyed
// by the Field* names below.
package authrpc

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "storefront.auth.AuthService"

const (
	MethodSignup  = "Signup"
	MethodLogin   = "Login"
	MethodRefresh = "Refresh"
	MethodLogout  = "Logout"
	MethodMe      = "Me"
	MethodPing    = "Ping"
)

// Struct field names used on the wire.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldName         = "name"
	FieldRole         = "role"
	FieldID           = "id"
	FieldUser         = "user"
	FieldAccessToken  = "accessToken"
	FieldRefreshToken = "refreshToken"
	FieldStatus       = "status"
	FieldMessage      = "message"
)

// StatusOK is the Ping reply status.
const StatusOK = "OK"

// FullMethod returns "/storefront.auth.AuthService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
