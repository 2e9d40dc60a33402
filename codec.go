package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var segmentParser = jwt.NewParser()

// DecodeToken extracts the claims embedded in a bearer token without
// verifying its signature or expiry. Every failure is reported as a
// decode failure, see IsDecodeFailure.
func DecodeToken(token string) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, withDetails(ErrTokenMalformed, map[string]any{
			"reason":   "segments",
			"segments": len(parts),
		})
	}

	payload, err := segmentParser.DecodeSegment(strings.TrimRight(parts[1], "="))
	if err != nil || len(payload) == 0 {
		return nil, withDetails(ErrTokenMalformed, map[string]any{
			"reason": "encoding",
		})
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, withDetails(ErrTokenMalformed, map[string]any{
			"reason": "payload",
		})
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, withDetails(ErrTokenMalformed, map[string]any{
			"reason": "payload",
			"error":  err.Error(),
		})
	}

	if name := claims.missingClaim(); name != "" {
		return nil, withDetails(ErrTokenClaimMissing, map[string]any{
			"claim": name,
		})
	}

	return claims, nil
}
