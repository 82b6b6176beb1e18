package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourusername/jolt/internal/actuator"
	"github.com/yourusername/jolt/internal/circuitbreaker"
	"github.com/yourusername/jolt/internal/commands"
	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/database"
	"github.com/yourusername/jolt/internal/errors"
	"github.com/yourusername/jolt/internal/handler"
	"github.com/yourusername/jolt/internal/irc"
	"github.com/yourusername/jolt/internal/maintenance"
	"github.com/yourusername/jolt/internal/metrics"
	"github.com/yourusername/jolt/internal/output"
	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/shutdown"
	"github.com/yourusername/jolt/internal/trigger"
	"github.com/yourusername/jolt/internal/user"
)

var version = "dev"

// inflightWaiter is implemented by both actuator implementations
type inflightWaiter interface {
	WaitForInflight(timeout time.Duration) bool
}

func main() {
	configPath := flag.String("config", "config/bot.toml", "Path to the TOML configuration file")
	rollbackFlag := flag.Bool("rollback", false, "Rollback the last applied database migration")
	hashFlag := flag.Bool("hash-password", false, "Read an admin password from stdin and print its bcrypt hash")
	flag.Parse()

	if *hashFlag {
		os.Exit(hashPassword())
	}

	// Create logger first for colored output
	logger := output.NewColorLogger(false)
	output.Banner(logger, version)

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Logging.Debug)
	logger.Success("Configuration loaded")

	// Test mode keeps the audit log in memory
	var db *database.DB
	if cfg.Bot.TestMode {
		logger.Info("Test mode enabled - using in-memory test database")
		db, err = database.NewTest()
	} else {
		db, err = database.New(cfg.Database.Path, cfg.Database.WALMode)
	}
	if err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	logger.Success("Database initialized")

	if *rollbackFlag {
		logger.Info("Rolling back last migration...")
		if err := db.Rollback(); err != nil {
			logger.Error("Rollback failed: %v", err)
			_ = db.Close()
			os.Exit(1)
		}
		logger.Success("Migration rolled back successfully")
		_ = db.Close()
		os.Exit(0)
	}

	out, err := output.NewOutput(logger, output.FileOptions{
		Path:       cfg.Logging.ErrorLogPath,
		MaxSizeMB:  cfg.Logging.MaxLogSizeMB,
		MaxBackups: cfg.Logging.MaxLogFiles,
		MaxAgeDays: cfg.Logging.MaxLogAgeDays,
	})
	if err != nil {
		logger.Error("Failed to initialize output: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	logger.Success("Output and error logging initialized")
	errorHandler := errors.NewErrorHandler(out)

	collectors := metrics.New()
	clock := clockwork.NewRealClock()

	tracker, err := ratelimit.NewCooldownTracker(cfg.Cooldown.GetWindowDuration(), cfg.Cooldown.MaxFiresPerWindow, clock)
	if err != nil {
		logger.Error("Failed to create cooldown tracker: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	go tracker.StartCleanup(rootCtx, cfg.Cooldown.GetCleanupIntervalDuration(), func(removed, remaining int) {
		collectors.SetTrackedUsers(remaining)
		if removed > 0 {
			logger.Debug("Evicted %d expired fire windows, %d remaining", removed, remaining)
		}
	})
	logger.Success("Cooldown tracker started (%d fires per %s, keyed by %s)",
		cfg.Cooldown.MaxFiresPerWindow, cfg.Cooldown.GetWindowDuration(), cfg.Cooldown.KeyBy)

	userMgr := user.NewManager(cfg.Bot.AdminPasswordHash, 0, clock)
	if !userMgr.HasAdminPassword() {
		logger.Warning("No admin password hash configured; admin commands are disabled")
		logger.Info("Generate one with: %s -hash-password", os.Args[0])
	}

	registry := commands.NewRegistry()
	if err := commands.RegisterDefaults(registry, commands.Dependencies{
		Tracker:     tracker,
		DB:          db,
		UserManager: userMgr,
		Clock:       clock,
		Prefix:      cfg.Bot.CommandPrefix,
	}); err != nil {
		logger.Error("Failed to register commands: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	dispatcher := commands.NewDispatcher(registry, userMgr, cfg.Bot.CommandPrefix)
	logger.Info("Core commands registered")

	device, err := newActuator(cfg, logger, collectors)
	if err != nil {
		logger.Error("Failed to create actuator: %v", err)
		_ = db.Close()
		os.Exit(1)
	}

	connManager := irc.NewConnectionManager(cfg, logger, version)

	outbound := ratelimit.New(
		cfg.Limits.RateLimitMessages,
		cfg.Limits.RateLimitWindow,
		cfg.Limits.MaxMessageQueue,
		func(target, message string) error {
			return connManager.GetClient().SendMessage(target, message)
		},
	)
	outbound.OnDrop(collectors.IncDroppedMessages)
	outbound.Start(rootCtx)

	messageHandler := handler.NewMessageHandler(&handler.MessageHandlerConfig{
		Dispatcher:      dispatcher,
		Evaluator:       trigger.NewEvaluator(cfg.TriggerConfig()),
		Tracker:         tracker,
		Actuator:        device,
		Notifier:        irc.NewNotifier(outbound, cfg.Server.MaxMessageLength),
		Events:          db,
		Metrics:         collectors,
		Logger:          logger,
		ErrorHandler:    errorHandler,
		Clock:           clock,
		KeyBy:           cfg.Cooldown.KeyBy,
		Intensity:       cfg.Actuator.Intensity,
		Duration:        cfg.Actuator.GetDuration(),
		NotifyOnFailure: cfg.Bot.NotifyOnFailure,
	})

	maintenanceScheduler := maintenance.New(db, logger, clock, maintenance.Options{
		VacuumInterval: cfg.Database.GetVacuumIntervalDuration(),
		Retention:      cfg.Database.GetEventRetention(),
		Sessions:       userMgr,
		OnPrune:        collectors.AddPrunedEvents,
	})
	if err := maintenanceScheduler.Start(rootCtx); err != nil {
		logger.Error("Failed to start maintenance scheduler: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	logger.Success("Database maintenance scheduler started")

	var metricsServer *metrics.Server
	if cfg.Metrics.ListenAddress != "" {
		health := func() error {
			if !connManager.IsConnected() {
				return irc.ErrNotConnected
			}
			return nil
		}
		metricsServer, err = metrics.Listen(cfg.Metrics.ListenAddress, metrics.NewHandler(collectors.Registry(), health))
		if err != nil {
			logger.Error("Failed to start metrics server: %v", err)
			_ = db.Close()
			os.Exit(1)
		}
		go func() {
			if err := metricsServer.Serve(); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		logger.Success("Metrics server listening on %s", metricsServer.Addr())
	}

	shutdownHandler := shutdown.NewHandler(logger, 5*time.Second)

	shutdownHandler.Register("irc", func(context.Context) error {
		logger.Info("Sending QUIT message to IRC server...")
		return connManager.Quit("Shutting down")
	})
	shutdownHandler.Register("background tasks", func(context.Context) error {
		outbound.Stop()
		cancelRoot()
		return nil
	})
	shutdownHandler.Register("maintenance", func(context.Context) error {
		return maintenanceScheduler.Stop()
	})
	if metricsServer != nil {
		shutdownHandler.Register("metrics server", metricsServer.Shutdown)
	}
	shutdownHandler.Register("actuator", func(context.Context) error {
		logger.Info("Waiting for in-flight actuator requests...")
		if waiter, ok := device.(inflightWaiter); ok && !waiter.WaitForInflight(3*time.Second) {
			logger.Warning("Some actuator requests timed out")
		}
		return nil
	})
	shutdownHandler.Register("database", func(context.Context) error {
		if err := db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		logger.Success("Database connection closed")
		return nil
	})
	shutdownHandler.Register("error log", func(context.Context) error {
		return out.Close()
	})

	go shutdownHandler.WaitForShutdown(context.Background())

	// Must be wired before Connect so registration traffic is handled
	connManager.SetupBotMessageHandler(messageHandler, cfg.Bot.GetHandlerTimeoutDuration(), logger)

	// Run serves every connection, including ones made by the reconnection manager
	go func() {
		if err := connManager.Run(); err != nil {
			logger.Error("IRC client error: %v", err)
		}
	}()

	if err := connManager.Connect(); err != nil {
		logger.Error("Failed to connect to IRC: %v", err)
		shutdownHandler.Shutdown()
		<-shutdownHandler.Done()
		os.Exit(1)
	}

	connManager.StartReconnectionManager()

	logger.Success("Bot initialization complete. Connected as %s.", connManager.GetCurrentNick())

	<-shutdownHandler.Done()
	logger.Success("jolt has shut down gracefully. Goodbye!")
}

// newActuator returns the PiShock client, or a mock in test mode
func newActuator(cfg *config.Config, logger output.Logger, collectors *metrics.Collectors) (actuator.Actuator, error) {
	if cfg.Bot.TestMode {
		logger.Info("Test mode enabled - using mock actuator")
		return actuator.NewMockActuator(), nil
	}

	op, err := actuator.ParseOperation(cfg.Actuator.Operation)
	if err != nil {
		return nil, err
	}

	client := actuator.NewPiShockClient(actuator.PiShockConfig{
		Endpoint:         cfg.Actuator.Endpoint,
		Username:         cfg.Actuator.Username,
		APIKey:           cfg.Actuator.APIKey,
		ShareCode:        cfg.Actuator.ShareCode,
		Name:             cfg.Actuator.Name,
		Operation:        op,
		Timeout:          cfg.Actuator.GetTimeoutDuration(),
		MaxRetries:       cfg.Actuator.MaxRetries,
		RetryBackoff:     cfg.Actuator.GetRetryBackoffDuration(),
		BreakerThreshold: cfg.Actuator.CircuitBreakerThreshold,
		BreakerTimeout:   cfg.Actuator.GetCircuitBreakerTimeoutDuration(),
		OnBreakerChange: func(from, to circuitbreaker.State) {
			logger.Warning("Actuator circuit breaker %s -> %s", from, to)
			collectors.SetBreakerState(to.String())
		},
		OnRequest: collectors.ObserveActuatorRequest,
		Logger:    logger,
	})
	collectors.SetBreakerState(client.BreakerState().String())
	logger.Success("PiShock client ready (%s, intensity %d, %s)",
		op, cfg.Actuator.Intensity, cfg.Actuator.GetDuration())
	return client, nil
}

// hashPassword prints the bcrypt hash for admin_password_hash
func hashPassword() int {
	fmt.Fprint(os.Stderr, "Enter admin password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
		return 1
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		return 1
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
