package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	appConfig "github.com/kgellert/hodatay-images/internal/config"
	mwLogger "github.com/kgellert/hodatay-images/internal/http-server/middleware/logger"
	"github.com/kgellert/hodatay-images/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/hodatay-images/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-images/internal/rooms"
	"github.com/kgellert/hodatay-images/internal/storage"
	fsstorage "github.com/kgellert/hodatay-images/internal/storage/fs"
	s3storage "github.com/kgellert/hodatay-images/internal/storage/s3"
	"github.com/kgellert/hodatay-images/internal/tempuser"
	"github.com/kgellert/hodatay-images/internal/token"
	"github.com/kgellert/hodatay-images/internal/transfer"
	uploadsHandler "github.com/kgellert/hodatay-images/internal/uploads/handler"
	uploadsRepo "github.com/kgellert/hodatay-images/internal/uploads/repo"
	uploadsService "github.com/kgellert/hodatay-images/internal/uploads/service"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting hodatay-images", slog.String("env", cfg.Env))

	ctx := context.Background()

	codec, err := token.NewCodec(cfg.Storage.Secret)
	if err != nil {
		log.Error("failed to init token codec", sl.Err(err))
		os.Exit(1)
	}

	var provider storage.Provider
	var blobs storage.BlobStore

	switch cfg.Storage.Backend {
	case "fs":
		fsStorage := fsstorage.New(fsstorage.Config{
			Root:         cfg.Storage.Root,
			BaseURL:      cfg.App.BaseURL,
			MaxImageSize: cfg.Storage.MaxImageSize,
			UploadTTL:    cfg.Storage.UploadTTL,
			DownloadTTL:  cfg.Storage.DownloadTTL,
		}, codec)
		provider = fsStorage
		blobs = fsStorage

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
			),
		)
		if err != nil {
			log.Error("failed to load aws config", sl.Err(err))
			os.Exit(1)
		}

		s3Client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		})

		provider = s3storage.New(s3storage.Config{
			Bucket:       cfg.S3.Bucket,
			MaxImageSize: cfg.Storage.MaxImageSize,
			UploadTTL:    cfg.Storage.UploadTTL,
			DownloadTTL:  cfg.Storage.DownloadTTL,
		}, s3Client, awss3.NewPresignClient(s3Client))

	default:
		log.Error("failed to init storage",
			slog.String("backend", cfg.Storage.Backend),
			sl.Err(storage.ErrUnsupportedBackend),
		)
		os.Exit(1)
	}

	repo, err := uploadsRepo.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to init metadata repo", sl.Err(err))
		os.Exit(1)
	}

	service := uploadsService.New(provider, blobs, repo, rooms.AllowAll{})
	uh := uploadsHandler.New(service, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	// No URLFormat here: capability tokens contain a "." and the
	// middleware would strip the signature segment as a format extension.

	router.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("user_id")
		if raw == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  "user_id",
			Value: raw,
			Path:  "/",
		})

		w.WriteHeader(http.StatusOK)
	})

	// Redemption endpoints carry their credential in the path; they are
	// only mounted when the backend holds the bytes itself.
	if blobs != nil {
		th := transfer.New(codec, blobs, log)
		router.Put("/images/upload/{token}", th.Upload())
		router.Get("/images/download/{token}", th.Download())
	}

	router.Group(func(r chi.Router) {
		r.Use(tempuser.WithUser)

		r.Post("/api/images/upload-url", uh.IssueUploadURL())
		r.Post("/api/images/download-url", uh.IssueDownloadURL())
		r.Post("/api/images/confirm", uh.ConfirmUpload())
		r.Post("/api/images/delete", uh.DeleteImage())
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
