// Package main is the entry point for the API Gateway.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elibrary/apigateway/internal/config"
	"github.com/elibrary/apigateway/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitFunc terminates the process; replaced in tests.
var exitFunc = os.Exit

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool

	// Set when given on the command line; such values win over cfg.Logging.
	logLevelSet  bool
	logFormatSet bool
}

func main() {
	flags := parseFlags(os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	cfg := loadAndValidateConfig(flags.configPath, logger)
	logger = reconfigureLogger(logger, flags, cfg)
	app := initApplication(cfg, logger)

	runGateway(app, logger)
}

// parseFlags parses command line flags.
func parseFlags(args []string) cliFlags {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	configPath := fs.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", ""),
		"Path to an optional YAML configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", config.DefaultLogLevel),
		"Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", getEnvOrDefault("LOG_FORMAT", config.DefaultLogFormat),
		"Log format (json, console)")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	flags := cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			flags.logLevelSet = true
		case "log-format":
			flags.logFormatSet = true
		}
	})
	return flags
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("apigateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		exitFunc(1)
		return observability.NopLogger()
	}
	return logger
}

// reconfigureLogger rebuilds the logger from cfg.Logging once the
// configuration is known. Explicit command line flags keep precedence.
func reconfigureLogger(
	current observability.Logger,
	flags cliFlags,
	cfg *config.GatewayConfig,
) observability.Logger {
	logCfg := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if flags.logLevelSet {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormatSet {
		logCfg.Format = flags.logFormat
	}
	if strings.EqualFold(logCfg.Level, flags.logLevel) && logCfg.Format == flags.logFormat {
		return current
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		current.Warn("keeping startup logger", observability.Error(err))
		return current
	}
	_ = current.Sync()

	logger.Debug("logger reconfigured",
		observability.String("level", logCfg.Level),
		observability.String("format", logCfg.Format),
	)
	return logger
}

// loadAndValidateConfig loads and validates the configuration. Any error
// aborts the process with a non-zero status.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting apigateway",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fatalWithSync(logger, "failed to load configuration", observability.Error(err))
		return nil
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fatalWithSync(logger, "invalid configuration", observability.Error(err))
		return nil
	}

	logger.Info("configuration loaded",
		observability.String("env", cfg.Env),
		observability.String("listen_addr", cfg.Server.ListenAddr),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("upstreams", len(cfg.Upstreams)),
	)
	return cfg
}

// fatalWithSync logs at error level, flushes the logger and exits with 1.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
