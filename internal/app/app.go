// Package app connects the backing services and builds the service layer
// shared by the server, the worker and sitectl.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/db"
	"github.com/sitesmithapp/sitesmith/internal/db/migrations"
	"github.com/sitesmithapp/sitesmith/internal/dns"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/services"
	"github.com/sitesmithapp/sitesmith/internal/storage"
	"github.com/sitesmithapp/sitesmith/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// App holds live connections and the services built on them.
type App struct {
	Config *config.Config

	Postgres *db.PostgresClient
	Mongo    *mongo.Client
	Redis    *redis.Client
	S3       *s3.Client

	Store     *store.Postgres
	Projects  *store.MongoProjects
	Queue     *queue.Redis
	Artifacts *storage.S3Artifacts

	Websites    *services.WebsiteService
	Deployments *services.DeploymentService
	Domains     *services.DomainService
}

// Connect opens every backend, applies pending migrations and wires the
// services. Call Close when done.
func Connect(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	pg, err := db.NewPostgresClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Postgres = pg
	log.Println("Successfully connected to PostgreSQL database")

	if err := migrations.MigrateUp(pg.SQLDB()); err != nil {
		a.Close()
		return nil, err
	}

	mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	a.Mongo = mongoClient

	// Ping MongoDB to verify connection
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Successfully connected to MongoDB")

	redisClient, err := queue.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = redisClient
	log.Println("Successfully connected to Redis")

	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.S3 = s3Client

	a.Store = store.NewPostgres(pg)
	a.Projects = store.NewMongoProjects(mongoClient, cfg.MongoDatabase)
	a.Queue = queue.NewRedis(redisClient, cfg.BuildQueueKey)
	a.Artifacts = storage.NewS3Artifacts(s3Client, cfg.S3Bucket)

	a.Websites = services.NewWebsiteService(a.Store, a.Projects)
	a.Deployments = services.NewDeploymentService(a.Store, a.Queue, a.Artifacts)
	a.Domains = services.NewDomainService(a.Store, dns.NewResolverChecker(nil, 0), cfg.DomainCNAMETarget, cfg.DomainVerifyPrefix)

	return a, nil
}

// Close releases whatever Connect managed to open.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting MongoDB: %v", err)
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}
