package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	authPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth/postgres"
	companyPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company/postgres"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/mailer"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification"
	notificationPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification/postgres"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/obs"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/order"
	orderPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/order/postgres"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/provision"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/session"
	teamPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/team/postgres"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/rest"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/swagger"
	userPostgres "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user/postgres"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Feed     *realtime.Feed
	Provider *auth.Provider
	Manager  *session.Manager
	Mailer   *mailer.Client
	Router   *chi.Mux
	Handlers rest.Handlers
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Feed, deps.Handlers, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Handlers.Notification.Close()
		deps.Manager.Close()
		deps.Mailer.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.Session.Normalize()

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	obs.Init()

	if err := swagger.ValidateSpec("./api/openapi.yml"); err != nil {
		return nil, fmt.Errorf("openapi spec: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over pgx pool: %w", err)
	}

	feed := realtime.NewFeed(lg)

	credStore := authPostgres.NewRepository(gormDB)
	tokens := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	provider := auth.NewProvider(credStore, tokens, config.Security.BCryptCost, lg)

	userRepo := userPostgres.NewRepository(gormDB)
	companyRepo := companyPostgres.NewRepository(gormDB, feed)
	teamRepo := teamPostgres.NewRepository(gormDB)
	notificationRepo := notificationPostgres.NewRepository(gormDB, feed)
	orderRepo := orderPostgres.NewRepository(gormDB, feed)

	manager := session.NewManager(session.Config{
		ProfileFetchTimeout: config.Session.ProfileFetchTimeout,
		ProfileRetryBackoff: config.Session.ProfileRetryBackoff,
		CompanyPollInterval: config.Session.CompanyPollInterval,
	}, provider, userRepo, companyRepo, feed, lg)

	mailClient := mailer.NewClient(mailer.Config{
		APIURL:       config.Mailer.APIURL,
		APIKey:       config.Mailer.APIKey,
		FromAddress:  config.Mailer.FromAddress,
		SendTimeout:  config.Mailer.SendTimeout,
		MaxWorkers:   config.Mailer.MaxWorkers,
		JobQueueSize: config.Mailer.JobQueueSize,
	}, lg)

	orderService := order.NewService(orderRepo, notificationRepo, userRepo, lg)
	provisionService := provision.NewService(gormDB, provider, companyRepo, userRepo, mailClient, lg)

	handlers := rest.Handlers{
		Session:      session.NewHandler(manager, config.Security.LoginRatePerMinute),
		Manager:      manager,
		Notification: notification.NewHandler(notificationRepo, teamRepo, feed, provider),
		Order:        order.NewHandler(orderService),
		Provision:    provision.NewHandler(provisionService),
		AdminKey:     config.Security.AdminServiceKey,
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		GormDB:   gormDB,
		Feed:     feed,
		Provider: provider,
		Manager:  manager,
		Mailer:   mailClient,
		Router:   chi.NewRouter(),
		Handlers: handlers,
		Logger:   lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
