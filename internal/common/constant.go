// Package common contains shared constants and sentinel errors used across
// smartyedu components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// device access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// UsersCollection is the remote collection holding promoted user documents.
const UsersCollection = "users"
