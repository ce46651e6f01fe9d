// Package utils holds the configuration loader and logger factory shared by every gitscan command.
//
// ConfigurationLoader layers embedded defaults, an optional YAML file, explicit defaults and
// GITSCAN_* environment variables through Viper. LoggerFactory builds zap loggers that write to
// standard error so reports on standard output stay machine readable.
package utils
