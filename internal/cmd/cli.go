// Package cmd holds the kong command tree for the dsud binary.
package cmd

// CLI is the root command structure parsed by kong in cmd/dsud.
type CLI struct {
	ConfigPath string        `name:"config" help:"Path to a config file (json/yaml/toml)." env:"DSUD_CONFIG"`
	Server     Server        `cmd:"" help:"Run the DSU server."`
	Config     ConfigCommand `cmd:"" help:"Generate a configuration template."`
	Log        LogConfig     `embed:"" prefix:"log."`
}

// LogConfig groups the logging flags shared by every subcommand.
type LogConfig struct {
	Level   string `help:"Log level (trace, debug, info, warn, error)." enum:"trace,debug,info,warn,error" default:"info" env:"DSUD_LOG_LEVEL"`
	File    string `help:"Also write structured logs to this file; console logs then all go to stderr." env:"DSUD_LOG_FILE"`
	RawFile string `help:"Write a hex dump of every DSU datagram to this file." env:"DSUD_LOG_RAW_FILE"`
}
