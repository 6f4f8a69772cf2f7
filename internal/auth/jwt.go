// Package auth issues and verifies the device tokens that authenticate the
// client's sync traffic to the remote document store.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the device the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// GenerateToken signs an HS256 token for deviceID valid for ttl.
func GenerateToken(deviceID string, secretKey []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   deviceID,
		},
		DeviceID: deviceID,
	})

	return token.SignedString(secretKey)
}

// DeviceIDFromToken validates tokenString and returns its device id.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// validation yields common.ErrInvalidToken.
func DeviceIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.DeviceID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DeviceID, nil
}
