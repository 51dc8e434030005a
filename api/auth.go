package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const requesterKey = "requester"

// Claims is the payload of the identity token issued by the user service.
type Claims struct {
	UserID  string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 identity tokens carried in a request header.
type Authenticator struct {
	secret []byte
	header string
}

func NewAuthenticator(secret, header string) *Authenticator {
	if header == "" {
		header = "auth-token"
	}
	return &Authenticator{secret: []byte(secret), header: header}
}

// Sign issues a token for claims. Used by tests and local tooling.
func (a *Authenticator) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// RequireUser rejects requests without a valid token and stores the caller as a
// domain.Requester on the context.
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(a.header)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "access denied: no token provided"})
			return
		}
		claims, err := a.parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}
		c.Set(requesterKey, domain.Requester{UserID: claims.UserID, Email: claims.Email, IsAdmin: claims.IsAdmin})
		c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requesterFrom(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden: admins only"})
			return
		}
		c.Next()
	}
}

func requesterFrom(c *gin.Context) domain.Requester {
	v, ok := c.Get(requesterKey)
	if !ok {
		return domain.Requester{}
	}
	who, _ := v.(domain.Requester)
	return who
}
