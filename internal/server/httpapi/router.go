package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gin-gonic/gin"
)

type SessionManager interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*models.UserSummary, error)
}

type UserAdmin interface {
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	SetRole(ctx context.Context, userID, role string) error
	DeleteUser(ctx context.Context, userID string) error
}

type Gate interface {
	Authenticate(rawHeader string) (*auth.Claims, error)
	Authorize(ctx context.Context, claims *auth.Claims, role string) error
}

type Handler struct {
	sessions SessionManager
	admin    UserAdmin
	logger   logging.Logger
}

// NewRouter mounts every route on a fresh gin engine.
func NewRouter(l logging.Logger, sessions SessionManager, admin UserAdmin, gate Gate) *gin.Engine {
	h := &Handler{sessions: sessions, admin: admin, logger: l.With("module", "http")}

	r := gin.New()
	r.Use(RequestLogger(h.logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", h.Signup)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)

	protected := authGroup.Group("")
	protected.Use(Authenticate(gate))
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)

	adminGroup := api.Group("/admin")
	adminGroup.Use(Authenticate(gate), RequireRole(gate, common.RoleAdmin))
	adminGroup.GET("/users", h.ListUsers)
	adminGroup.PATCH("/users/:id/role", h.SetRole)
	adminGroup.DELETE("/users/:id", h.DeleteUser)

	return r
}
