// Command autoflight runs the autonomous flight-control rule engine and
// its integrated ground-operations ATC (spec.md §1). Grounded on
// Valkyrie's cmd/valkyrie/main.go: package-level flag configuration, an
// application struct holding every subsystem, Initialize/Start/Shutdown
// methods, and signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/windward/autoflight/internal/advisor"
	"github.com/windward/autoflight/internal/airport"
	"github.com/windward/autoflight/internal/api"
	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/auth"
	"github.com/windward/autoflight/internal/broadcast"
	"github.com/windward/autoflight/internal/config"
	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/evaluator"
	"github.com/windward/autoflight/internal/facility"
	"github.com/windward/autoflight/internal/heldaxis"
	"github.com/windward/autoflight/internal/learning"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/navdb"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/queue"
	"github.com/windward/autoflight/internal/rules"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
	"github.com/windward/autoflight/pkg/utils"
)

// autoflight holds every wired subsystem for the process lifetime.
type autoflight struct {
	cfg    config.Config
	logger *logrus.Logger

	sim        simlink.Simulator
	dispatcher *dispatch.Dispatcher
	heldLoop   *heldaxis.Loop
	phaseM     *phase.Machine
	ruleEngine *rules.Engine
	cmdQueue   *queue.Queue

	navClient     *navdb.Client
	facilityStore *facility.Store
	atcCtrl       *atc.Controller
	detector      *airport.Detector

	logbookStore *logbook.Store
	learnStore   *learning.Store
	tuningStore  *tuning.Store
	advisorClnt  *advisor.Client
	streamer     *broadcast.Streamer
	authSvc      *auth.Service
	natsConn     *nats.Conn

	eval *evaluator.Evaluator

	apiServer     *http.Server
	metricsServer *http.Server
	tracerProv    *sdktrace.TracerProvider

	mu        sync.Mutex
	lastFrame simlink.Frame
	haveFrame bool
}

func main() {
	cfg := config.Load()
	logger := utils.NewLogger("info", "stdout")

	logger.WithFields(logrus.Fields{
		"httpPort":    cfg.HTTPPort,
		"metricsPort": cfg.MetricsPort,
		"sim":         cfg.SimMode,
	}).Info("starting autoflight")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	af := &autoflight{cfg: cfg, logger: logger}
	if err := af.initialize(); err != nil {
		logger.WithField("error", err).Fatal("failed to initialize autoflight")
	}
	af.start(ctx)

	logger.Info("autoflight operational, press Ctrl+C to shut down")
	<-sigCh
	logger.Info("shutdown signal received")
	af.shutdown()
	logger.Info("autoflight shutdown complete")
}

// initialize wires every subsystem but starts nothing yet.
func (af *autoflight) initialize() error {
	cfg := af.cfg
	logger := af.logger

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}
	af.tracerProv = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(af.tracerProv)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, "atc-cache"), 0o755); err != nil {
		return fmt.Errorf("create atc cache dir: %w", err)
	}

	if cfg.SimMode {
		af.sim = simlink.NewMockSimulator(logger)
	} else {
		logger.Warn("non-simulation mode requested, but no native simulator link is wired; falling back to mock")
		af.sim = simlink.NewMockSimulator(logger)
	}

	af.dispatcher = dispatch.NewDispatcher(af.sim, logger)
	af.heldLoop = heldaxis.NewLoop(af.dispatcher, logger)
	af.phaseM = phase.NewMachine()
	af.ruleEngine = rules.NewEngine()
	af.cmdQueue = queue.New(af.dispatcher, logger)

	af.navClient = navdb.NewClient(cfg.NavDBURL, cfg.NavDBTimeout)
	af.facilityStore = facility.NewStore(filepath.Join(cfg.DataDir, "atc-cache"), af.navClient, logger)

	af.atcCtrl = atc.NewController(af.facilityStore, logger)
	if cfg.EnableATC {
		af.detector = airport.NewDetector(af.navClient, af.atcCtrl, logger)
	}

	af.logbookStore = logbook.NewStore(filepath.Join(cfg.DataDir, "takeoff-attempts.json"), logger)
	af.learnStore = learning.NewStore(filepath.Join(cfg.DataDir, "sally-learnings.json"), logger)
	af.tuningStore = tuning.NewStore(filepath.Join(cfg.DataDir, "tuning.json"), logger)

	advisorMode := advisor.ModeHosted
	if cfg.AdvisorLocal {
		advisorMode = advisor.ModeLocal
	}
	af.advisorClnt = advisor.NewClient(cfg.AdvisorURL, cfg.AdvisorKey, cfg.AdvisorModel, advisorMode, logger)

	if cfg.EnableNATS {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.WithField("error", err).Warn("failed to connect to NATS, broadcast fan-out disabled")
		} else {
			af.natsConn = conn
		}
	}
	af.streamer = broadcast.NewStreamer(logger, af.natsConn, cfg.NATSSubject)

	signingKey := cfg.JWTSigningKey
	if signingKey == "" {
		logger.Warn("no JWT signing key configured, generating an ephemeral one for this process")
		signingKey = fmt.Sprintf("ephemeral-%d", time.Now().UnixNano())
	}
	operatorUser := envOr("AUTOFLIGHT_OPERATOR_USER", "operator")
	passwordHash := os.Getenv("AUTOFLIGHT_OPERATOR_PASSWORD_HASH")
	if passwordHash == "" {
		logger.Warn("no operator password hash configured, generating one from a random password (see logs once)")
		randomPassword := fmt.Sprintf("autoflight-%d", time.Now().UnixNano())
		hash, err := auth.HashPassword(randomPassword)
		if err != nil {
			return fmt.Errorf("hash fallback operator password: %w", err)
		}
		passwordHash = hash
		logger.WithField("password", randomPassword).Warn("generated operator credentials")
	}
	af.authSvc = auth.NewService(operatorUser, passwordHash, []byte(signingKey))

	af.eval = evaluator.New(
		af.phaseM,
		af.ruleEngine,
		af.atcCtrl,
		af.dispatcher,
		af.cmdQueue,
		af.tuningStore,
		af.logbookStore,
		af.streamer,
		filepath.Join(cfg.DataDir, "rule-engine-state.json"),
		logger,
	)

	return nil
}

// start launches every background loop and both HTTP servers.
func (af *autoflight) start(ctx context.Context) {
	cfg := af.cfg
	logger := af.logger

	if err := af.sim.Connect(ctx); err != nil {
		logger.WithField("error", err).Warn("simulator connect failed, will continue retrying via frame loop")
	}

	go af.heldLoop.Run(ctx)
	go af.cmdQueue.Run(ctx)
	go af.tickLoop(ctx)

	if cfg.EnableATC && af.detector != nil {
		go af.detector.Run(ctx, af.positionSnapshot)
	}

	router := api.NewRouter(af.authSvc, af.eval, af.atcCtrl, af.logbookStore, af.learnStore, af.tuningStore, af.advisorClnt, af.streamer, cfg.EnableAdvisor, cfg.EnableBroadcast)
	af.apiServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: router}
	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("operator API listening")
		if err := af.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err).Error("operator API server error")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	af.metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: metricsMux}
	go func() {
		logger.WithField("port", cfg.MetricsPort).Info("metrics server listening")
		if err := af.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err).Error("metrics server error")
		}
	}()
}

// tickLoop drains telemetry frames and feeds the evaluation tick
// (spec.md §4.14), recording the latest frame for the airport detector's
// position snapshot.
func (af *autoflight) tickLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-af.sim.Frames():
			if !ok {
				return
			}
			af.mu.Lock()
			af.lastFrame = f
			af.haveFrame = true
			af.mu.Unlock()
			af.eval.Tick(ctx, f, time.Now())
		}
	}
}

func (af *autoflight) positionSnapshot() airport.PositionSnapshot {
	af.mu.Lock()
	defer af.mu.Unlock()
	if !af.haveFrame {
		return airport.PositionSnapshot{}
	}
	return airport.PositionSnapshot{Lat: af.lastFrame.Latitude, Lon: af.lastFrame.Longitude, AGL: af.lastFrame.AltitudeAGL}
}

// shutdown gracefully stops both HTTP servers, releases held axes, and
// disconnects the simulator and NATS links.
func (af *autoflight) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if af.apiServer != nil {
		if err := af.apiServer.Shutdown(ctx); err != nil {
			af.logger.WithField("error", err).Warn("operator API shutdown error")
		}
	}
	if af.metricsServer != nil {
		if err := af.metricsServer.Shutdown(ctx); err != nil {
			af.logger.WithField("error", err).Warn("metrics server shutdown error")
		}
	}

	af.dispatcher.ReleaseAll(ctx)
	af.sim.Disconnect()

	if af.natsConn != nil {
		af.natsConn.Close()
	}
	if af.tracerProv != nil {
		if err := af.tracerProv.Shutdown(ctx); err != nil {
			af.logger.WithField("error", err).Warn("tracer provider shutdown error")
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
