package config

import (
	"flag"
	"fmt"
	"os"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN
//	-r string   Redis address for the shared login throttle
//	-s string   session token secret
//	-m string   media token secret
//	-w string   billing webhook secret
//	-l string   log level
func parseFlags(config *Config) error {
	args := filterArgs(os.Args[1:], "-a", "-g", "-d", "-r", "-s", "-m", "-w", "-l")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session token secret")
	fs.StringVar(&config.MediaSecret, "m", config.MediaSecret, "media token secret")
	fs.StringVar(&config.BillingWebhookSecret, "w", config.BillingWebhookSecret, "billing webhook secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}
