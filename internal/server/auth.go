package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Role names carried in token claims
const (
	RoleMember = "member"
	RoleOracle = "oracle"
	RoleAdmin  = "admin"
)

// Claims is the JWT claim set issued by the identity service. The subject
// is the account UUID commands execute as.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (tv *TokenVerifier) VerifyToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

const (
	ctxAccountKey = "auth_account"
	ctxRoleKey    = "auth_role"
)

// RequireRole authenticates the request and checks the token role against
// the allowed set. Admin passes every check.
func (tv *TokenVerifier) RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[RoleAdmin] = true

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		claims, err := tv.VerifyToken(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		account, _ := uuid.Parse(claims.Subject)
		c.Set(ctxAccountKey, account)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

// accountFrom returns the authenticated account set by RequireRole
func accountFrom(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ctxAccountKey)
	account, _ := v.(uuid.UUID)
	return account
}
