package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFormat = errors.New("invalid token format")
	ErrBadSignature  = errors.New("bad token signature")
	ErrExpired       = errors.New("token expired")
	ErrMissingExp    = fmt.Errorf("%w: missing exp claim", ErrInvalidFormat)
)

const tokenHeader = `{"alg":"HS256","typ":"JWT"}`

// b64 is strict so that a signature with non-canonical trailing bits never
// decodes to the same bytes as the minted one.
var b64 = base64.RawURLEncoding.Strict()

// Claims is a decoded token payload. Values are whatever encoding/json
// produced: strings, float64 numbers, bools, nested maps or slices.
type Claims map[string]any

// Sub returns the sub claim if it is a string.
func (c Claims) Sub() (string, bool) {
	s, ok := c["sub"].(string)
	return s, ok
}

// Login returns the login claim if it is a string.
func (c Claims) Login() (string, bool) {
	s, ok := c["login"].(string)
	return s, ok
}

// ExpiresAt returns the exp claim as a time.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, ok := c["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return secondsToTime(exp), true
}

// SessionClaims is the claim set minted on login. Field order matches the
// legacy issuer so tokens are byte-identical for the same inputs.
type SessionClaims struct {
	Sub   string  `json:"sub"`   // user id
	Login string  `json:"login"` // login at issuance
	Exp   float64 `json:"exp"`   // expires at, seconds since epoch
}

func NewSessionClaims(userID int64, login string, expiresAt time.Time) SessionClaims {
	return SessionClaims{
		Sub:   strconv.FormatInt(userID, 10),
		Login: login,
		Exp:   timeToSeconds(expiresAt),
	}
}

func (c SessionClaims) SignedString(secret []byte) (string, error) {
	return Encode(c, secret)
}

// Encode serialises claims as the token payload and signs header and payload
// with HMAC-SHA256.
func Encode(claims any, secret []byte) (string, error) {
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	sigInput := b64.EncodeToString([]byte(tokenHeader)) + "." + b64.EncodeToString(payloadJSON)
	sig := hmacSHA256(secret, []byte(sigInput))

	return sigInput + "." + b64.EncodeToString(sig), nil
}

// Decode validates token against secret at the current wall-clock time.
// A token without exp is accepted and never expires; use a Codec with
// RequireExp to reject those.
func Decode(token string, secret []byte) (Claims, error) {
	return decode(token, secret, time.Now().UTC(), false)
}

func decode(token string, secret []byte, now time.Time, requireExp bool) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidFormat
	}
	headerB64, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	expectedSig := hmacSHA256(secret, []byte(headerB64+"."+payloadB64))
	sig, err := b64.DecodeString(sigB64)
	if err != nil || !hmac.Equal(sig, expectedSig) {
		return nil, ErrBadSignature
	}

	if err := checkHeader(headerB64); err != nil {
		return nil, err
	}

	payloadJSON, err := b64.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrInvalidFormat, err)
	}
	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil || claims == nil {
		return nil, fmt.Errorf("%w: payload is not a claim object", ErrInvalidFormat)
	}

	raw, present := claims["exp"]
	if !present {
		if requireExp {
			return nil, ErrMissingExp
		}
		return claims, nil
	}
	exp, ok := raw.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: exp is not a number", ErrInvalidFormat)
	}
	if timeToSeconds(now) > exp {
		return nil, ErrExpired
	}

	return claims, nil
}

func checkHeader(headerB64 string) error {
	headerJSON, err := b64.DecodeString(headerB64)
	if err != nil {
		return fmt.Errorf("%w: decode header: %v", ErrInvalidFormat, err)
	}
	var h struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return fmt.Errorf("%w: header: %v", ErrInvalidFormat, err)
	}
	if h.Alg != "HS256" {
		return fmt.Errorf("%w: unsupported alg %q", ErrInvalidFormat, h.Alg)
	}
	return nil
}

func hmacSHA256(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return mac.Sum(nil)
}

// exp carries microsecond precision, like the legacy issuer.
func timeToSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func secondsToTime(s float64) time.Time {
	return time.UnixMicro(int64(s * 1e6)).UTC()
}
