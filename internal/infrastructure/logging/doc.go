// Package logging builds the log/slog loggers shared by grayhub,
// grayhub-agent and grayhubctl.
//
// Every entry carries service and version; subsystems add a component
// attribute through Component:
//
//	logger := logging.New(cfg.Logging, "grayhub", version)
//	logger.Component("router").Info("listening", "addr", addr)
//
// config.yaml selects the level (debug, info, warn, error), the format
// (json or text) and the output (stdout or stderr).
//
// Failures reported back to clients, such as an unknown device or bad
// parameters, are logged at debug and never at error.
package logging
