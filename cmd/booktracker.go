package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/configuration"
	"booktracker/internal/database"
	"booktracker/internal/logger"
	"booktracker/internal/mailer"
	"booktracker/internal/search"
	"booktracker/internal/server"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"
)

func main() {
	if err := runApp(); err != nil {
		os.Exit(1)
	}
}

func runApp() (err error) {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	appContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
			err = errors.Errorf("panic: %v", r)
		}
	}()

	config, err := configuration.GetConfig(*configPath)
	if err != nil {
		appLogger.Error("Error getting configuration from", *configPath+":", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("booktracker_backend.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)
	appLogger.Debugf("Config: server: %s, db: %s/%s, redis: %q, search: %q, cleanup: %q, timezone: %s",
		config.ServerAddress, config.DatabaseURI, config.DatabaseName, config.RedisAddress,
		config.SearchSchedule, config.CleanupSchedule, config.ScheduleLocation)

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI, config.DatabaseName)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()

	var redisClient *redis.Client
	if config.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.RedisAddress,
			Password: config.RedisPassword,
		})
		if err := redisClient.Ping(appContext).Err(); err != nil {
			appLogger.Warn("Redis unavailable, search results will not be cached:", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Error closing Redis client:", err)
			}
		}()
	}

	c := client.Client{
		Client:             client.NewHTTPClient(),
		Redis:              redisClient,
		CacheTTL:           config.CacheTTL,
		FCMKey:             config.FCMKey,
		Logger:             appLogger,
		TextSearchURL:      config.TextSearchURL,
		TextSearchLimiter:  client.NewLimiter(config.TextSearchInterval),
		ForumSearchURL:     config.ForumSearchURL,
		ForumSearchLimiter: client.NewLimiter(config.ForumSearchInterval),
	}

	aggregator := search.NewAggregator(appLogger,
		search.Connector{Name: client.TextSearchSource, Search: c.TextSearch},
		search.Connector{Name: client.ForumSearchSource, Search: c.ForumSearch},
	)

	srv := server.Server{
		DB:                    database.Database{Database: dbConn.Database(config.DatabaseName)},
		Search:                aggregator,
		Logger:                appLogger,
		AuthSecretKey:         config.AuthSecretKey,
		Validator:             validator.New(),
		SearchThrottle:        config.SearchThrottle,
		BookInterval:          config.BookInterval,
		UserInterval:          config.UserInterval,
		UserConcurrency:       config.UserConcurrency,
		NotificationRetention: config.NotificationRetention,
		CleanupLimit:          config.CleanupLimit,
	}
	if config.SMTPHost != "" {
		srv.Mailer = mailer.Mailer{
			Host:     config.SMTPHost,
			Port:     config.SMTPPort,
			Username: config.SMTPUsername,
			Password: config.SMTPPassword,
			From:     config.SMTPFrom,
		}
	} else {
		appLogger.Warn("smtp_host is not set, match emails are disabled")
	}
	if config.FCMKey != "" {
		srv.Pusher = c
	}

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	sup := server.NewSupervisor(appLogger,
		server.HTTPService{Server: httpSrv},
		server.Scheduler{
			Server:          srv,
			SearchSchedule:  config.SearchSchedule,
			CleanupSchedule: config.CleanupSchedule,
			Location:        config.ScheduleLocation,
		},
	)

	appLogger.Info("Serving on", httpSrv.Addr)
	if err = sup.Serve(appContext); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Supervisor stopped:", err)
		return err
	}
	appLogger.Info("Shut down")
	return nil
}
