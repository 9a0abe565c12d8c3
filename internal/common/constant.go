package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the actor
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName is the HTTP header carrying a bearer token.
const AuthorizationHeaderName = "Authorization"
