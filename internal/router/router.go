package router

import (
	"context"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"idees/internal/cache"
	"idees/internal/config"
	"idees/internal/handlers"
	"idees/internal/identity"
	"idees/internal/logger"
	"idees/internal/metrics"
	"idees/internal/middleware"
	"idees/internal/ratelimit"
	"idees/internal/services"
)

const (
	sessionName   = "idees_session"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// Deps is everything the HTTP layer is built from.
type Deps struct {
	Config   *config.Config
	Log      logger.Logger
	DB       *gorm.DB
	Limiter  ratelimit.Limiter
	Policies map[string]ratelimit.Policy
	Metrics  *metrics.Metrics
	Pages    *cache.Pages
	Links    services.MetadataFetcher

	// Extra health checks besides the database, e.g. redis.
	Checks map[string]handlers.Pinger
}

// New wires services and handlers and registers every route.
func New(d Deps) *gin.Engine {
	cfg := d.Config

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure(),
		SameSite: http.SameSiteLaxMode,
	})

	// Services
	authSvc := services.NewAuth(d.DB, d.Log, d.Pages)
	notesSvc := services.NewNotifications(d.DB, d.Log)
	votesSvc := services.NewVotes(d.DB, d.Log, d.Pages, d.Metrics)
	suggestionsSvc := services.NewSuggestions(d.DB, d.Log, d.Pages)
	commentsSvc := services.NewComments(d.DB, d.Log)
	followsSvc := services.NewFollows(d.DB, d.Log)
	tagsSvc := services.NewTags(d.DB, d.Log, d.Pages)
	adminSvc := services.NewAdmin(d.DB, d.Log, d.Pages, d.Links)

	ident := identity.NewResolver(cfg.VisitorCookie, cfg.Secure())
	limits := &middleware.Limits{
		Limiter:    d.Limiter,
		Policies:   d.Policies,
		TrustProxy: cfg.TrustProxy,
		Metrics:    d.Metrics,
		Log:        d.Log,
	}

	checks := map[string]handlers.Pinger{"database": handlers.PingFunc(func(ctx context.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})}
	for name, p := range d.Checks {
		checks[name] = p
	}

	// Handlers
	suggestionHandler := handlers.NewSuggestionHandler(suggestionsSvc, votesSvc, d.Pages, ident, d.Log)
	voteHandler := handlers.NewVoteHandler(votesSvc, ident, d.Log)
	commentHandler := handlers.NewCommentHandler(commentsSvc, d.Log)
	followHandler := handlers.NewFollowHandler(followsSvc, d.Log)
	tagHandler := handlers.NewTagHandler(tagsSvc, d.Log)
	authHandler := handlers.NewAuthHandler(authSvc, d.Log)
	notificationHandler := handlers.NewNotificationHandler(notesSvc, d.Log)
	adminHandler := handlers.NewAdminHandler(adminSvc, d.Log)
	healthHandler := handlers.NewHealthHandler(checks, d.Log)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.AccessLog(d.Log, cfg.TrustProxy),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		sessions.Sessions(sessionName, store),
		middleware.LoadUser(authSvc, notesSvc, d.Log),
	)

	// Public routes
	r.GET("/", suggestionHandler.List)
	r.GET("/suggestions/:id", suggestionHandler.Detail)
	r.GET("/suggestions/:id/comments", commentHandler.List)
	r.GET("/suggestions/:id/follow", followHandler.Status)
	r.POST("/suggestions/:id/vote", limits.For(ratelimit.ActionVote), voteHandler.Toggle)
	r.GET("/votes", voteHandler.Voted)
	r.GET("/tags", tagHandler.List)
	r.GET("/healthz", healthHandler.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.POST("/signup", limits.For(ratelimit.ActionSignUp), authHandler.SignUp)
	r.POST("/signin", limits.For(ratelimit.ActionSignIn), authHandler.SignIn)
	r.POST("/signout", authHandler.SignOut)
	r.GET("/me", authHandler.Me)

	// Signed-in routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.PATCH("/me", limits.For(ratelimit.ActionProfile), authHandler.UpdateMe)
		authorized.POST("/me/password", limits.For(ratelimit.ActionPassword), authHandler.ChangePassword)

		authorized.POST("/suggestions", limits.For(ratelimit.ActionSuggestion), suggestionHandler.Create)
		authorized.PATCH("/suggestions/:id", suggestionHandler.Update)
		authorized.DELETE("/suggestions/:id", suggestionHandler.Delete)

		authorized.POST("/suggestions/:id/comments", limits.For(ratelimit.ActionComment), commentHandler.Create)
		authorized.PATCH("/comments/:id", commentHandler.Update)
		authorized.DELETE("/comments/:id", commentHandler.Delete)

		authorized.POST("/suggestions/:id/follow", followHandler.Follow)
		authorized.DELETE("/suggestions/:id/follow", followHandler.Unfollow)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)
	}

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/stats", adminHandler.Stats)

		admin.POST("/suggestions/:id/done", adminHandler.MarkDone)
		admin.POST("/suggestions/:id/reopen", adminHandler.Reopen)
		admin.PATCH("/suggestions/:id/done-comment", adminHandler.UpdateDoneComment)
		admin.POST("/suggestions/:id/links", adminHandler.AddLink)
		admin.DELETE("/links/:id", adminHandler.DeleteLink)
		admin.POST("/links/backfill", adminHandler.BackfillLinks)

		admin.GET("/users", adminHandler.Users)
		admin.PATCH("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.POST("/users/:id/admin", adminHandler.ToggleAdmin)
		admin.POST("/users/:id/ban", adminHandler.ToggleBan)

		admin.GET("/comments", adminHandler.Comments)
		admin.DELETE("/comments/:id", adminHandler.DeleteComment)

		admin.POST("/tags", tagHandler.Create)
		admin.PATCH("/tags/:id", tagHandler.UpdateIcon)
		admin.DELETE("/tags/:id", tagHandler.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, "Not found")
	})
	return r
}
