package http

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"trivia-service/internal/domain"
)

const identityKey = "identity"

// Claims are the bearer token claims: sub carries the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued by the identity provider.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Verify parses token and returns the identity it carries.
func (a *Authenticator) Verify(token string) (domain.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}

	who := domain.Identity{ID: claims.Subject}
	if claims.Email != "" {
		email := claims.Email
		who.Email = &email
	}
	return who, nil
}

// Required rejects requests without a valid bearer token.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, err := a.fromRequest(c)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

// Optional attaches the identity when a valid token is present and lets anonymous requests through.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if who, err := a.fromRequest(c); err == nil {
			c.Set(identityKey, who)
		}
		c.Next()
	}
}

// fromRequest reads the token from the Authorization header, or from the token query parameter
// for websocket upgrades where browsers cannot set headers.
func (a *Authenticator) fromRequest(c *gin.Context) (domain.Identity, error) {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return domain.Identity{}, fmt.Errorf("%w: malformed authorization header", domain.ErrUnauthenticated)
		}
		token = strings.TrimSpace(value)
	} else {
		token = c.Query("token")
	}
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}
	return a.Verify(token)
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if who, ok := v.(domain.Identity); ok {
			return who
		}
	}
	return domain.Identity{}
}
