// Gray Logic Hub - device agent
//
// grayhub-agent runs one simulated appliance: it answers the gateway's
// multicast discovery probes, executes commands on its TCP port and pushes
// telemetry to the gateway that last probed it.
//
// Usage:
//
//	grayhub-agent [-config path] [-type smart_lamp] [-port 0]
//
// The config file is optional; GRAYHUB_AGENT_* environment variables apply
// on top of the defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/nerrad567/gray-logic-hub/internal/agent"
	"github.com/nerrad567/gray-logic-hub/internal/appliance"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// options are the command-line overrides.
type options struct {
	configPath string
	deviceType string
	port       int
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("grayhub-agent", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := options{}
	fs.StringVar(&opts.configPath, "config", getConfigPath(), "path to YAML config")
	fs.StringVar(&opts.deviceType, "type", "", "appliance type: "+strings.Join(appliance.Types(), ", "))
	fs.IntVar(&opts.port, "port", -1, "command port (0 picks one; default from config)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(output, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return options{}, errors.New("unexpected arguments")
	}
	return opts, nil
}

// run starts the agent and blocks until ctx is cancelled.
func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyOptions(cfg, opts)

	dev, err := appliance.New(cfg.Agent.DeviceType)
	if err != nil {
		return fmt.Errorf("creating appliance: %w", err)
	}

	log := logging.New(cfg.Logging, "grayhub-agent", version)
	log.Info("starting device agent",
		"version", version,
		"commit", commit,
		"type", dev.Type(),
	)

	a := agent.New(agentConfig(cfg), dev)
	a.SetLogger(log.Component("agent"))
	return a.Run(ctx)
}

func applyOptions(cfg *config.Config, opts options) {
	if opts.deviceType != "" {
		cfg.Agent.DeviceType = opts.deviceType
	}
	if opts.port >= 0 {
		cfg.Agent.CommandPort = opts.port
	}
}

// agentConfig maps the loaded config onto the agent's settings. Discovery
// and telemetry ports come from the gateway section so both sides agree.
func agentConfig(cfg *config.Config) agent.Config {
	d := cfg.Gateway.Discovery
	return agent.Config{
		ListenAddr:  hostPort(cfg.Agent.ListenHost, cfg.Agent.CommandPort),
		AdvertiseIP: cfg.Agent.AdvertiseIP,
		Discovery: discovery.ResponderConfig{
			Group:     d.Group,
			Port:      d.Port,
			ReplyPort: d.ReplyPort,
			Interface: d.Interface,
		},
		TelemetryPort:     cfg.Gateway.TelemetryPort,
		TelemetryInterval: cfg.Agent.TelemetryInterval,
	}
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
