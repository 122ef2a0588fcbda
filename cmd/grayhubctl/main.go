// grayhubctl is a command-line client for a grayhub gateway.
//
// Usage:
//
//	grayhubctl [-addr host:port] [-timeout 10s] list
//	grayhubctl [-addr host:port] control <device_id> <action> [params_json]
//	grayhubctl [-addr host:port] status <device_id>
//
// The gateway address defaults to GRAYHUB_ADDR, then 127.0.0.1:6000.
// Exit status is 0 when the gateway reports success, 1 when it reports
// failure or cannot be reached, and 2 on usage errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/nerrad567/gray-logic-hub/internal/client"
	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

const defaultAddr = "127.0.0.1:6000"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage error")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("grayhubctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", getAddr(), "gateway command address")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	c := client.New(*addr, *timeout)
	defer c.Close()

	resp, err := dispatch(ctx, c, fs.Args())
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		usage(stderr, fs)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	printResponse(stdout, resp)
	if !resp.Success {
		return exitFailure
	}
	return exitOK
}

// dispatch maps the positional arguments onto one gateway request.
func dispatch(ctx context.Context, c *client.Client, args []string) (*wire.ClientResponse, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing subcommand", errUsage)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: list takes no arguments", errUsage)
		}
		return c.ListDevices(ctx)

	case "control":
		if len(rest) < 2 || len(rest) > 3 {
			return nil, fmt.Errorf("%w: control needs <device_id> <action> [params_json]", errUsage)
		}
		params := ""
		if len(rest) == 3 {
			params = rest[2]
		}
		return c.ControlDevice(ctx, rest[0], rest[1], params)

	case "status":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: status needs <device_id>", errUsage)
		}
		return c.GetStatus(ctx, rest[0])

	default:
		return nil, fmt.Errorf("%w: unknown subcommand %q", errUsage, cmd)
	}
}

// printResponse writes the gateway message and, for listings, a device table.
func printResponse(w io.Writer, resp *wire.ClientResponse) {
	if resp.Success {
		fmt.Fprintln(w, resp.Message)
	} else {
		fmt.Fprintf(w, "FAILED: %s\n", resp.Message)
	}
	if len(resp.Devices) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE ID\tTYPE\tADDRESS\tSTATUS\tATTRIBUTES")
	for _, d := range resp.Devices {
		address := "-"
		if d.Port != 0 {
			address = fmt.Sprintf("%s:%d", d.IP, d.Port)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.DeviceID, d.DeviceType, address, d.Status, formatAttributes(d.Attributes))
	}
	_ = tw.Flush()
}

func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ",")
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: grayhubctl [flags] list | control <device_id> <action> [params_json] | status <device_id>")
	fs.PrintDefaults()
}

// getAddr returns the gateway address from GRAYHUB_ADDR or the default.
func getAddr() string {
	if addr := os.Getenv("GRAYHUB_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}
