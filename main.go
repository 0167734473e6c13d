package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"productsapi/internal/config"
	"productsapi/internal/database"
	"productsapi/internal/handlers"
	"productsapi/internal/repositories"
	"productsapi/internal/server"
	"productsapi/internal/services"
	"productsapi/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg, os.Stdout)
	log.Info().Str("env", cfg.Env).Str("driver", cfg.Database.Driver).Msg("starting products api")

	// --- Persistence ---
	productRepo, closeRepo, err := openRepository(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer closeRepo()

	// --- Product events (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQ.Enabled() {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq connection failed")
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		log.Info().Msg("RABBITMQ_URL not set, product events disabled")
	}

	// --- HTTP ---
	productService := services.NewProductService(productRepo, publisher)
	productHandler := handlers.NewProductHandler(productService)

	app, err := server.New(server.Options{
		FrontendURL: cfg.FrontendURL,
		AccessLog:   os.Stdout,
	}, productHandler)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http server")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("REST API listening")
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Error().Err(err).Msg("server stopped")
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info().Msg("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("error during fiber shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg *config.Config, out io.Writer) {
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// openRepository returns the product repository for the configured driver
// and a func releasing its resources.
func openRepository(cfg config.DatabaseConfig) (repositories.ProductRepository, func(), error) {
	if cfg.Driver == config.DriverMemory {
		return repositories.NewMemoryProductRepository(), func() {}, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
	return repositories.NewGORMProductRepository(db), closeDB, nil
}
