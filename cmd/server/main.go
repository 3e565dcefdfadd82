package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studytrack/internal/config"
	"studytrack/internal/crypto"
	"studytrack/internal/db"
	"studytrack/internal/handlers"
	mw "studytrack/internal/middleware"
	"studytrack/internal/retention"
	"studytrack/internal/token"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	cipher, err := crypto.NewPayloadCipher([]byte(cfg.PayloadKey))
	if err != nil {
		logger.Fatal("invalid payload key", zap.Error(err))
	}

	dbConn, err := sqlx.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open db", zap.Error(err))
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetConnMaxLifetime(2 * time.Hour)
	if err = dbConn.Ping(); err != nil {
		logger.Fatal("failed to ping db", zap.Error(err))
	}
	if err := db.RunMigrations(dbConn); err != nil {
		logger.Fatal("failed migrations", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pruner := retention.NewPruner(dbConn, logger, cfg.RetentionInterval, cfg.RetentionMaxAge)
	go pruner.Run(ctx)

	tokens := token.NewService([]byte(cfg.JWTSecret))
	authMW := mw.NewAuthMiddleware(tokens)
	userHandler := handlers.NewUserHandler(dbConn, tokens, cfg.TokenTTL, cfg.PasswordChangeTokenTTL)
	dataHandler := handlers.NewDataHandler(dbConn, cipher)
	researcherHandler := handlers.NewResearcherHandler(dbConn, cipher)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/user", func(ur chi.Router) {
		ur.Post("/", userHandler.Ping)
		ur.Post("/login", userHandler.Login)
		ur.Post("/register", userHandler.Register)
		ur.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)
			pr.Post("/deleteAccount", userHandler.DeleteAccount)
			pr.Put("/changePassword", userHandler.ChangePassword)
		})
		ur.Post("/*", userHandler.Teapot)
	})

	r.Route("/data", func(dr chi.Router) {
		dr.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)
			pr.Get("/getQuestionnaireData", dataHandler.GetQuestionnaireData)
			pr.Get("/getActivityData", dataHandler.GetActivityData)
			pr.Get("/getSensorData", dataHandler.GetSensorData)
			pr.Put("/setQuestionnaireData", dataHandler.SetQuestionnaireData)
			pr.Put("/setSensorData", dataHandler.SetSensorData)
			pr.Put("/setActivityData", dataHandler.SetActivityData)
			pr.Post("/deleteActivity", dataHandler.DeleteActivity)
			pr.Post("/deleteData", dataHandler.DeleteData)
		})
		dr.Post("/*", dataHandler.Teapot)
	})

	r.Get("/researcher/getData", researcherHandler.GetData)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
