package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/catalog"
	"github.com/appetiteclub/pos/services/pos/internal/display"
	"github.com/appetiteclub/pos/services/pos/internal/mongo"
	"github.com/appetiteclub/pos/services/pos/internal/session"
)

const (
	appNamespace = "POS"
	appName      = "pos"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	cfg, err := session.LoadConfig(config)
	if err != nil {
		log.Fatalf("%s(%s) invalid session configuration: %v", appName, appVersion, err)
	}

	var lifecycles []interface{}

	backendMode := config.GetStringOrDef("backend.mode", "memory")
	catalogSource := config.GetStringOrDef("catalog.source", "demo")

	var baseRepo *mongo.BaseRepo
	if backendMode == "mongo" || catalogSource == "mongo" {
		baseRepo = mongo.NewBaseRepo(config, logger)
		if err := baseRepo.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
		}
		db := baseRepo.GetDatabase()
		if db == nil {
			log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
		}
		if err := mongo.ApplyDemoSeeds(ctx, config, db, logger); err != nil {
			log.Fatalf("%s(%s) cannot apply demo seeds: %v", appName, appVersion, err)
		}
		lifecycles = append(lifecycles, aqm.LifecycleHooks{OnStop: baseRepo.Stop})
	}

	var orders backend.Backend
	switch backendMode {
	case "memory":
		orders = backend.NewMemory(logger)
	case "mongo":
		orders = mongo.NewStore(baseRepo.GetDatabase(), logger)
	case "remote":
		orderURL, _ := config.GetString("services.order.url")
		if orderURL == "" {
			log.Fatalf("%s(%s) remote backend needs services.order.url", appName, appVersion)
		}
		orders = backend.NewClient(aqm.NewServiceClient(orderURL), logger)
	default:
		log.Fatalf("%s(%s) unknown backend.mode %q", appName, appVersion, backendMode)
	}
	logger.Info("order backend selected", "mode", backendMode)

	var source catalog.Source
	switch catalogSource {
	case "demo":
		source = catalog.DemoSource{}
	case "mongo":
		source = mongo.NewCatalogRepo(baseRepo.GetDatabase())
	case "service":
		menuURL, _ := config.GetString("services.menu.url")
		if menuURL == "" {
			log.Fatalf("%s(%s) service catalog needs services.menu.url", appName, appVersion)
		}
		language := config.GetStringOrDef("catalog.language", "en")
		source = catalog.NewServiceSource(aqm.NewServiceClient(menuURL), cfg.Currency, language, logger)
	default:
		log.Fatalf("%s(%s) unknown catalog.source %q", appName, appVersion, catalogSource)
	}
	menu := catalog.NewCatalog(source, logger)
	lifecycles = append(lifecycles, menu)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})

	sub, err := pkg.NewNATSSubscriber(natsURL, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStop: func(context.Context) error {
			return sub.Close()
		},
	})

	// Dispatch events go through JetStream when enabled so stations catch up after a restart.
	var dispatch events.Publisher = pub
	if config.GetStringOrDef("nats.stream.enabled", "false") == "true" {
		stream, err := newDispatchStream(ctx, config, natsURL)
		if err != nil {
			log.Fatalf("%s(%s) cannot set up dispatch stream: %v", appName, appVersion, err)
		}
		dispatch = stream
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error {
				return stream.Close()
			},
		})
	}

	var tables session.TableGate
	tableURL, _ := config.GetString("services.table.url")
	if tableURL != "" {
		ttl, err := durationOrDef(config, "tables.cache.ttl", 5*time.Minute)
		if err != nil {
			log.Fatalf("%s(%s) %v", appName, appVersion, err)
		}
		cache := session.NewTableStateCache(aqm.NewServiceClient(tableURL), ttl, logger)
		tables = cache
		lifecycles = append(lifecycles, session.NewTableStatusSubscriber(sub, cache, logger))
	} else {
		logger.Info("services.table.url not set, dine-in tables are not gated")
	}

	interval, err := durationOrDef(config, "display.interval", display.DefaultInterval)
	if err != nil {
		log.Fatalf("%s(%s) %v", appName, appVersion, err)
	}
	displayStream := display.NewStreamServer(logger)
	broadcaster := display.NewBroadcaster(pub, displayStream, display.Config{
		Topic:    config.GetStringOrDef("display.topic", event.DisplayTopic),
		Interval: interval,
	}, logger)
	lifecycles = append(lifecycles, broadcaster)

	registry := session.NewRegistry(session.Deps{
		Backend:   orders,
		Menu:      menu,
		Tables:    tables,
		Publisher: dispatch,
		Display:   broadcaster,
		Config:    cfg,
		Logger:    logger,
	})

	handler := session.NewHandler(session.HandlerDeps{
		Registry: registry,
		Catalog:  menu,
	}, config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithGRPCServerModules("grpc.port", displayStream),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s) for %s", appName, appVersion, cfg.VenueName)

	if err := ms.Run(ctx); err != nil {
		if baseRepo != nil {
			_ = baseRepo.Stop(context.Background())
		}
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func newDispatchStream(ctx context.Context, config *aqm.Config, natsURL string) (*pkg.NATSStream, error) {
	maxAge, err := durationOrDef(config, "nats.stream.max_age", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	return pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:        natsURL,
		StreamName: config.GetStringOrDef("nats.stream.name", "POS_DISPATCH"),
		Subjects:   []string{event.OrderItemsTopic},
		MaxAge:     maxAge,
	})
}

func durationOrDef(config *aqm.Config, key string, def time.Duration) (time.Duration, error) {
	raw, _ := config.GetString(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
