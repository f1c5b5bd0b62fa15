// Package config parses the process's command-line configuration, in the
// flag-package style of Valkyrie's cmd/valkyrie/main.go: one package-level
// var block of flags, grouped by concern, collected into a Config struct
// by Load.
package config

import (
	"flag"
	"time"
)

// Config is the fully parsed process configuration.
type Config struct {
	HTTPPort    int
	MetricsPort int
	DataDir     string

	NavDBURL     string
	NavDBTimeout time.Duration

	AdvisorURL   string
	AdvisorKey   string
	AdvisorModel string
	AdvisorLocal bool

	NATSURL     string
	NATSSubject string

	JWTSigningKey string

	EnableATC       bool
	EnableAdvisor   bool
	EnableBroadcast bool
	EnableNATS      bool

	SimMode bool
}

var (
	httpPort    = flag.Int("http-port", 8420, "HTTP API port")
	metricsPort = flag.Int("metrics-port", 9420, "Prometheus metrics port")
	dataDir     = flag.String("data-dir", "./data", "Directory for persisted JSON stores")

	navdbURL     = flag.String("navdb", "http://localhost:8500", "Navigation database endpoint")
	navdbTimeout = flag.Duration("navdb-timeout", 5*time.Second, "Navigation database request timeout")

	advisorURL   = flag.String("advisor", "https://api.openai.com/v1", "Advisor chat-completions endpoint")
	advisorKey   = flag.String("advisor-key", "", "Advisor API key")
	advisorModel = flag.String("advisor-model", "gpt-4o-mini", "Advisor model name")
	advisorLocal = flag.Bool("advisor-local", false, "Advisor is a local model (120s timeout instead of 30s)")

	natsURL     = flag.String("nats", "", "NATS server URL for broadcast fan-out (empty disables NATS)")
	natsSubject = flag.String("nats-subject", "autoflight.broadcast", "NATS subject for broadcast records")

	jwtSigningKey = flag.String("jwt-key", "", "JWT signing key for operator API auth")

	enableATC       = flag.Bool("atc", true, "Enable ground-operations ATC controller")
	enableAdvisor   = flag.Bool("advisor-enabled", true, "Enable the tuning/learning advisor")
	enableBroadcast = flag.Bool("broadcast", true, "Enable the WebSocket broadcast streamer")

	simMode = flag.Bool("sim", true, "Simulation mode: drive the in-process mock simulator instead of a real link")
)

// Load parses the command line and returns the resulting Config. Callers
// that have already called flag.Parse() (e.g. in tests) may call this
// again safely; flag.Parse() is idempotent once arguments are consumed.
func Load() Config {
	if !flag.Parsed() {
		flag.Parse()
	}
	return Config{
		HTTPPort:        *httpPort,
		MetricsPort:     *metricsPort,
		DataDir:         *dataDir,
		NavDBURL:        *navdbURL,
		NavDBTimeout:    *navdbTimeout,
		AdvisorURL:      *advisorURL,
		AdvisorKey:      *advisorKey,
		AdvisorModel:    *advisorModel,
		AdvisorLocal:    *advisorLocal,
		NATSURL:         *natsURL,
		NATSSubject:     *natsSubject,
		JWTSigningKey:   *jwtSigningKey,
		EnableATC:       *enableATC,
		EnableAdvisor:   *enableAdvisor,
		EnableBroadcast: *enableBroadcast,
		EnableNATS:      *natsURL != "",
		SimMode:         *simMode,
	}
}
