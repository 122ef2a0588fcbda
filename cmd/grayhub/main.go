// Gray Logic Hub - device discovery and command gateway
//
// grayhub finds device agents on the LAN by multicast probe, keeps a live
// registry of them, ingests their telemetry and routes client commands to
// them over TCP.
//
// Listeners:
//   - TCP command port (default 6000), length-prefixed protobuf
//   - UDP discovery replies (default 50001)
//   - UDP telemetry (default 50002)
//   - HTTP API and WebSocket (default 8080)
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/natsbus"
	"github.com/nerrad567/gray-logic-hub/internal/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/router"
	"github.com/nerrad567/gray-logic-hub/internal/telemetry"
	"github.com/nerrad567/gray-logic-hub/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// retentionInterval is how often old telemetry history is pruned.
	retentionInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or a
// service fails.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, "grayhub", version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	m := metrics.New()

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))
	registry.AddObserver(func(device.Event) {
		s := registry.Stats()
		m.SetRegistrySize(s.Routable, s.TelemetryOnly)
	})

	checks := map[string]api.HealthCheck{}

	// Telemetry history (optional)
	var history device.TelemetryHistory
	var historyStore *device.SQLiteTelemetryHistory
	if cfg.Database.Enabled {
		db, openErr := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		historyStore = device.NewSQLiteTelemetryHistory(db.DB)
		history = historyStore
		checks["database"] = db.HealthCheck
		log.Info("telemetry history enabled", "path", cfg.Database.Path, "retention", cfg.Database.HistoryRetention)
	}

	// Event publishing (optional)
	var bridge *eventbus.Bridge
	if cfg.MQTT.Enabled || cfg.NATS.Enabled {
		bridge = eventbus.New(eventbus.DefaultQueueSize)
		bridge.SetLogger(log.Component("eventbus"))
	}

	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		bridge.SetMQTT(mqttClient, byte(cfg.MQTT.QoS)) //nolint:gosec // validated 0-2
		checks["mqtt"] = mqttClient.HealthCheck
		log.Info("MQTT connected",
			"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
			"topic_prefix", mqttClient.Topics().Prefix(),
		)
	}

	if cfg.NATS.Enabled {
		natsClient, connErr := natsbus.Connect(cfg.NATS)
		if connErr != nil {
			return fmt.Errorf("connecting to NATS: %w", connErr)
		}
		defer func() {
			log.Info("closing NATS connection")
			if closeErr := natsClient.Close(); closeErr != nil {
				log.Error("error closing NATS", "error", closeErr)
			}
		}()
		natsClient.SetLogger(log.Component("nats"))
		bridge.SetNATS(natsClient)
		checks["nats"] = natsClient.HealthCheck
		log.Info("NATS connected", "url", cfg.NATS.URL)
	}

	// Time series (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection", "failed_batches", influxClient.WriteFailures())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Discovery
	dc := cfg.Gateway.Discovery
	sender, err := discovery.NewSender(dc.Group, dc.Port, dc.TTL, dc.Interface)
	if err != nil {
		return fmt.Errorf("creating discovery sender: %w", err)
	}
	defer sender.Close()

	disc := discovery.NewService(discovery.Config{
		ReplyAddr:  hostPort(cfg.Gateway.ListenHost, dc.ReplyPort),
		Interval:   dc.Interval,
		Eviction:   dc.Eviction,
		StaleAfter: dc.StaleAfter(),
	}, registry, sender)
	disc.SetLogger(log.Component("discovery"))
	disc.SetMetrics(m)

	// Telemetry
	ingester := telemetry.NewIngester(hostPort(cfg.Gateway.ListenHost, cfg.Gateway.TelemetryPort), registry)
	ingester.SetLogger(log.Component("telemetry"))
	ingester.SetMetrics(m)
	if history != nil {
		ingester.AddSink(history)
	}
	if influxClient != nil {
		ingester.AddSink(influxClient)
	}

	// Command routing
	dispatcher := router.NewDispatcher(cfg.Gateway.DispatchTimeout, cfg.Gateway.MaxConcurrentDispatch)
	dispatcher.SetLogger(log.Component("dispatcher"))
	dispatcher.SetMetrics(m)

	rt := router.New(registry, dispatcher)
	rt.SetLogger(log.Component("router"))
	rt.SetMetrics(m)

	cmdServer := router.NewServer(hostPort(cfg.Gateway.ListenHost, cfg.Gateway.CommandPort), rt)
	cmdServer.SetLogger(log.Component("router"))

	if bridge != nil {
		bridge.SetCommander(rt)
		registry.AddObserver(bridge.Observe)
	}

	// Bind every listener before starting so port conflicts fail startup.
	if err := disc.Listen(ctx); err != nil {
		return err
	}
	if err := ingester.Listen(ctx); err != nil {
		return err
	}
	if err := cmdServer.Listen(ctx); err != nil {
		return err
	}

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.Component("api"),
			Registry:  registry,
			Commander: rt,
			History:   history,
			Metrics:   m,
			Checks:    checks,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("gateway started",
		"command_addr", cmdServer.Addr().String(),
		"discovery_reply_addr", disc.Addr().String(),
		"telemetry_addr", ingester.Addr().String(),
		"eviction", dc.Eviction,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return disc.Run(gctx) })
	g.Go(func() error { return ingester.Run(gctx) })
	g.Go(func() error { return cmdServer.Run(gctx) })
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	if historyStore != nil {
		g.Go(func() error {
			return telemetry.RunRetention(gctx, historyStore, cfg.Database.HistoryRetention, retentionInterval, log.Component("retention"))
		})
	}

	err = g.Wait()
	log.Info("shutdown complete", "devices", registry.Count())
	return err
}

// getConfigPath returns the config file path from GRAYHUB_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
