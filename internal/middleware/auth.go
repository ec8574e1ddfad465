package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenTTL = 7 * 24 * time.Hour

var errInvalidClaims = errors.New("invalid token claims")

type Claims struct {
	MemberID uuid.UUID `json:"memberId"`
	Email    string    `json:"email"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, memberID uuid.UUID, email string) (string, error) {
	claims := Claims{
		MemberID: memberID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a raw HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MemberID == uuid.Nil {
		return nil, errInvalidClaims
	}
	return claims, nil
}

func parseToken(secret, authHeader string) (*Claims, string) {
	// Extract token from "Bearer <token>"
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return nil, "Invalid authorization format"
	}

	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return nil, "Invalid or expired token"
	}
	return claims, ""
}

// Protected rejects requests without a valid bearer token.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
				"code":  "UNAUTHENTICATED",
			})
		}

		claims, msg := parseToken(secret, authHeader)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
				"code":  "UNAUTHENTICATED",
			})
		}

		c.Locals("memberId", claims.MemberID)
		c.Locals("email", claims.Email)
		return c.Next()
	}
}

// Optional resolves the viewer when a valid token is sent and otherwise lets the
// request through anonymously.
func Optional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get("Authorization"); authHeader != "" {
			if claims, _ := parseToken(secret, authHeader); claims != nil {
				c.Locals("memberId", claims.MemberID)
				c.Locals("email", claims.Email)
			}
		}
		return c.Next()
	}
}

// GetMemberID extracts the member ID from context
func GetMemberID(c *fiber.Ctx) uuid.UUID {
	memberID, ok := c.Locals("memberId").(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return memberID
}

// GetViewer returns the caller's member ID, or nil for anonymous callers.
func GetViewer(c *fiber.Ctx) *uuid.UUID {
	id := GetMemberID(c)
	if id == uuid.Nil {
		return nil
	}
	return &id
}
