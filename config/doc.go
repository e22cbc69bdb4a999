// Package config loads the monitor configuration from a YAML file and
// HEALTHMON_* environment variables. It defines server, monitor, recovery,
// logging, telemetry and diagnostics settings and the list of monitored
// dependencies.
package config
