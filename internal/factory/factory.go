package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"storefront-auth/internal/bucketing"
	"storefront-auth/internal/client"
	"storefront-auth/internal/config"
	"storefront-auth/internal/encryption"
	"storefront-auth/internal/geoip"
	"storefront-auth/internal/handler"
	"storefront-auth/internal/repository/redis"
	"storefront-auth/internal/repository/scylla"
	"storefront-auth/internal/service"
	"storefront-auth/internal/sms"
	"storefront-auth/internal/tls"
	"storefront-auth/internal/token"
	"storefront-auth/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	keyManager       *encryption.KeyManager
	bucketingManager *bucketing.BucketingManager
	tokenManager     *token.Manager

	// Repositories and services
	userRepository    *scylla.UserRepository
	profileRepository *scylla.ProfileRepository
	deviceLogs        *scylla.DeviceLogRepository
	throttleStore     *redis.ThrottleCache
	otpService        *service.OTPService
	authService       *service.AuthService
	anomalyNotifier   *service.AnomalyNotifier
	authHandler       *handler.AuthHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	factory.initializeServices()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = c
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if c, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = c
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka is best effort: login events and alerts degrade gracefully.
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch
	if c, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = c
		if err := f.esClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
		} else {
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse
	if c, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = c
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

func (f *Factory) initializeManagers() error {
	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		kmsClient = kms.NewFromConfig(awsCfg)
	}

	f.keyManager = encryption.NewKeyManager(f.config, kmsClient)

	secret, err := f.keyManager.SigningSecret(context.Background())
	if err != nil {
		return fmt.Errorf("signing secret: %w", err)
	}

	f.tokenManager = token.NewManager(secret, f.config.JWT.Issuer,
		f.config.JWT.AccessTTL, f.config.JWT.RefreshTTL)
	f.bucketingManager = bucketing.NewBucketingManager(f.config.Bucketing.UserBuckets)

	return nil
}

func (f *Factory) initializeServices() {
	f.userRepository = scylla.NewUserRepository(f.scyllaClient, f.bucketingManager)
	f.profileRepository = scylla.NewProfileRepository(f.scyllaClient)
	f.deviceLogs = scylla.NewDeviceLogRepository(f.scyllaClient)

	challenges := redis.NewOTPCache(f.redisClient)
	throttle := redis.NewThrottleCache(f.redisClient)
	denylist := redis.NewTokenDenylistCache(f.redisClient)
	geoCache := redis.NewGeoCacheStore(f.redisClient)

	gateway := sms.NewGateway(sms.New(f.config.SMS))
	resolver := geoip.NewHTTPResolver(f.config.GeoIP, geoCache)

	f.otpService = service.NewOTPService(challenges, throttle,
		f.userRepository, gateway, f.config.Limits)

	publisher := service.NewEventPublisher(f.kafkaProducer,
		f.clickhouseClient, f.config.Kafka.LoginTopic)

	f.anomalyNotifier = service.NewAnomalyNotifier(f.userRepository,
		f.kafkaProducer, f.esClient,
		f.config.Kafka.AlertTopic, f.config.Elasticsearch.AlertIndex)
	f.anomalyNotifier.Start()

	f.authService = service.NewAuthService(
		f.userRepository, f.profileRepository, f.deviceLogs,
		f.otpService, f.tokenManager, denylist,
		resolver, gateway, publisher, f.anomalyNotifier,
		f.config.Limits)

	f.authHandler = handler.NewAuthHandler(f.authService, f.otpService)
	f.throttleStore = throttle
}

// HealthCheck probes every backing store.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	} else {
		healthErrors["elasticsearch"] = fmt.Errorf("elasticsearch client not initialized")
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	} else {
		healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

// IsHealthy ignores Kafka since the service degrades without it.
func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.anomalyNotifier != nil {
			f.anomalyNotifier.Stop()
			util.Info("Anomaly notifier drained")
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) TokenManager() *token.Manager {
	return f.tokenManager
}

func (f *Factory) AuthHandler() *handler.AuthHandler {
	return f.authHandler
}

func (f *Factory) ThrottleStore() *redis.ThrottleCache {
	return f.throttleStore
}
