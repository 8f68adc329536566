package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nexconsult/simples-nacional/internal/cache"
	"github.com/nexconsult/simples-nacional/internal/config"
	"github.com/nexconsult/simples-nacional/internal/registry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container holds all service dependencies
type Container struct {
	config         *config.Config
	logger         *logrus.Logger
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	Store          cache.Store
	Registry       *registry.Client
	QueryService   *QueryService
	SimplesService *SimplesService
}

// NewContainer creates a new service container
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	if err := container.initStore(ctx); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	container.initServices()

	return container, nil
}

// initStore opens the configured cache backend
func (c *Container) initStore(ctx context.Context) error {
	switch c.config.Cache.Backend {
	case config.CacheBackendFile:
		c.Store = cache.NewFileStore(c.config.Cache.File, c.logger)

	case config.CacheBackendMemory:
		c.Store = cache.NewMemoryStore(nil)

	case config.CacheBackendRedis:
		if err := c.initRedis(ctx); err != nil {
			return err
		}
		c.Store = cache.NewRedisStore(c.redisClient, c.config.Cache.Key, c.logger)

	case config.CacheBackendMongo:
		if err := c.initMongo(ctx); err != nil {
			return err
		}
		coll := c.mongoClient.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection)
		c.Store = cache.NewMongoStore(coll, c.logger)

	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownBackend, c.config.Cache.Backend)
	}

	c.logger.WithField("backend", c.Store.Name()).Info("Cache store ready")
	return nil
}

// initRedis initializes Redis client
func (c *Container) initRedis(ctx context.Context) error {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	// A batch cannot run without its cache, so unlike an optional cache
	// layer there is no fallback here.
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	c.logger.Info("Redis connection established")
	return nil
}

// initMongo initializes MongoDB client
func (c *Container) initMongo(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, c.config.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(c.config.Mongo.URI))
	if err != nil {
		return fmt.Errorf("mongo connection failed: %w", err)
	}
	c.mongoClient = client

	if err := client.Ping(connectCtx, nil); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}

	c.logger.Info("MongoDB connection established")
	return nil
}

// initServices wires the registry client, query service and batch service
func (c *Container) initServices() {
	simples := c.config.Simples

	c.Registry = registry.NewClient(simples.BaseURL, simples.UserAgent, simples.RequestTimeout, c.logger)
	c.QueryService = NewQueryService(c.Registry, simples.RetryBackoff, time.Sleep, c.logger)
	c.SimplesService = NewSimplesService(c.Store, c.QueryService, SimplesOptions{
		RateLimitDelay: simples.RateLimitDelay,
		CacheTTL:       simples.CacheTTL(),
	}, c.logger)
}

// Close closes all service connections
func (c *Container) Close() error {
	var errors []error

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			errors = append(errors, fmt.Errorf("failed to close MongoDB: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errors)
	}

	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.redisClient != nil {
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	if c.mongoClient != nil {
		if err := c.mongoClient.Ping(ctx, nil); err != nil {
			health["mongo"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["mongo"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	if c.SimplesService != nil {
		health["simples"] = c.SimplesService.Health()
	}

	return health
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
