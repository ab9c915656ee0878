package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"
	"teamgrid/backend/internal/storage"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller extracted from a token by the auth
// collaborator.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

func (h *Handler) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
		"role":      user.Role,
		"exp":       time.Now().Add(72 * time.Hour).Unix(),
		"iss":       "teamgrid-realtime",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.JWTSecret)
}

func (h *Handler) parseToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, realtime.ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, realtime.ErrUnauthenticated
	}
	userID, _ := claims["user_id"].(string)
	tenantID, _ := claims["tenant_id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return nil, realtime.ErrUnauthenticated
	}
	return &Identity{UserID: userID, TenantID: tenantID, Role: role}, nil
}

// identify extracts and validates the bearer token from either the
// Authorization header or the token query parameter (browser websockets
// cannot set headers).
func (h *Handler) identify(c *gin.Context) (*Identity, error) {
	tokenString := ""
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	} else if q := c.Query("token"); q != "" {
		tokenString = q
	}
	if tokenString == "" {
		return nil, realtime.ErrUnauthenticated
	}
	return h.parseToken(tokenString)
}

// GetToken mints a development token. Real deployments sit behind the
// platform's auth service; this endpoint mirrors its output shape.
func (h *Handler) GetToken(c *gin.Context) {
	userID := c.Query("user_id")
	tenantID := c.DefaultQuery("tenant_id", "default")

	var user *models.User
	if userID != "" {
		existing, err := h.Storage.GetUserByID(userID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}
		user = existing
	}
	if user == nil {
		user = &models.User{ID: userID, TenantID: tenantID, Role: "member"}
		if err := h.Storage.SaveUser(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
	}

	token, err := h.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID, "tenant_id": user.TenantID})
}
