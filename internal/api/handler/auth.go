package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whisperchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "whisperchat"

// Claims carries the user's identity inside a session token.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// NewToken signs a token for who that expires ttl after now.
func NewToken(secret []byte, who models.Identity, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Name: who.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(who.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a token and returns the identity it was issued for.
func ParseToken(secret []byte, tokenString string) (models.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" || claims.Name == "" {
		return models.Identity{}, errors.New("invalid token: missing identity")
	}
	return models.Identity{ID: models.UserID(claims.Subject), Name: claims.Name}, nil
}

type tokenRequest struct {
	Name string `json:"name" binding:"required,min=3,max=16,alphanum"`
}

// IssueToken creates an anonymous user ID for the requested display name and
// returns a signed token for it.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 3-16 letters or digits"})
		return
	}

	if existing, ok := h.Hub.ResolveByName(req.Name); ok {
		h.logger.Debug("name already online", "name", req.Name, "user", existing.GetUserID())
		c.JSON(http.StatusConflict, gin.H{"error": "name is already in use"})
		return
	}

	who := models.Identity{ID: models.UserID(uuid.NewString()), Name: req.Name}
	token, err := NewToken(h.secret, who, h.tokenTTL, h.now())
	if err != nil {
		h.logger.Error("failed to sign token", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "id": who.ID, "name": who.Name})
}

// bearerToken reads the token from the Authorization header, or from the
// "token" query parameter for browsers that cannot set headers on upgrade.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}
