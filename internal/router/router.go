package router

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/feed"
	"github.com/threadloom/backend/internal/handlers"
	"github.com/threadloom/backend/internal/middleware"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/notify"
	"github.com/threadloom/backend/internal/realtime"
	"github.com/threadloom/backend/internal/repositories"
	"github.com/threadloom/backend/pkg/config"
	"github.com/threadloom/backend/pkg/storage"
	"go.uber.org/zap"
)

// SetupRoutes wires repositories, services and handlers onto the echo
// instance. mediaStore may be nil when media storage is not configured.
func SetupRoutes(e *echo.Echo, db *config.DB, cfg *config.Config, hub *realtime.Hub, mediaStore *storage.MediaStore, log *zap.Logger) error {
	err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Like{},
		&models.Bookmark{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}

	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(db.Postgres)
	likeRepo := repositories.NewPostgresLikeRepository(db.Postgres)
	bookmarkRepo := repositories.NewPostgresBookmarkRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	threadRepo := repositories.NewMongoThreadRepository(db.Mongo.Database(cfg.MongoDatabase))
	if err := threadRepo.EnsureIndexes(context.Background()); err != nil {
		return err
	}

	// A typed nil must not end up behind a non-nil interface value.
	var signer feed.MediaURLSigner
	var store handlers.MediaStore
	if mediaStore != nil {
		signer = mediaStore
		store = mediaStore
	}

	feedService := feed.NewService(threadRepo, userRepo, followRepo, likeRepo, bookmarkRepo, signer, log)
	notifyService := notify.NewService(userRepo, followRepo, notificationRepo, hub, log)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	userHandler := handlers.NewUserHandler(userRepo, followRepo)
	threadHandler := handlers.NewThreadHandler(threadRepo, userRepo, feedService, notifyService, store, log)
	feedHandler := handlers.NewFeedHandler(feedService)
	followHandler := handlers.NewFollowHandler(notifyService, followRepo, userRepo)
	likeHandler := handlers.NewLikeHandler(likeRepo, threadRepo, notifyService, log)
	bookmarkHandler := handlers.NewBookmarkHandler(bookmarkRepo, threadRepo, feedService)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo)
	realtimeHandler := handlers.NewRealtimeHandler(hub, log)

	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	authHandler.RegisterAuthRoutes(api.Group("/auth"))

	// Read surface: anonymous viewers allowed, identity attached when a
	// valid token is present.
	public := api.Group("", middleware.OptionalJWTAuthMiddleware(cfg.JWTSecret))
	feedHandler.RegisterFeedRoutes(public)
	threadHandler.RegisterThreadReadRoutes(public)
	realtimeHandler.RegisterRealtimeRoutes(public)
	public.GET("/users/search", userHandler.SearchUsers)

	// Write surface and private reads: authentication required.
	private := api.Group("", middleware.JWTAuthMiddleware(cfg.JWTSecret))
	userHandler.RegisterProfileRoutes(private)
	threadHandler.RegisterThreadRoutes(private)
	followHandler.RegisterFollowRoutes(private)
	likeHandler.RegisterLikeRoutes(private)
	bookmarkHandler.RegisterBookmarkRoutes(private)
	notificationHandler.RegisterNotificationRoutes(private)

	return nil
}
