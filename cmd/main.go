package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"studentfiles/config"
	"studentfiles/jobs"
	"studentfiles/routes"
	"studentfiles/services"
	"studentfiles/storage"
	"studentfiles/utils"
)

func main() {
	loadEnvFile()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "studentfiles",
		Short:        "Student file organizer backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			utils.InitLogger(os.Getenv("ENV") == "production")
			return config.LoadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			utils.SyncLogger()
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(config.AppConfig)
		},
	}
	root.RunE = serve.RunE

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, config.AppConfig)
			if err != nil {
				return err
			}
			defer store.Close()
			utils.LogInfo("Schema is up to date")
			return nil
		},
	}

	var teacherID uint
	var filePath string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import students for a teacher from an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), config.AppConfig, teacherID, filePath)
		},
	}
	importCmd.Flags().UintVar(&teacherID, "teacher", 0, "teacher ID that owns the imported students")
	importCmd.Flags().StringVar(&filePath, "file", "", "path to the .xlsx workbook")
	_ = importCmd.MarkFlagRequired("teacher")
	_ = importCmd.MarkFlagRequired("file")

	root.AddCommand(serve, migrate, importCmd)
	return root
}

// openStorage connects to the configured backend and migrates it.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var store storage.Storage
	var err error
	switch cfg.DatabaseDriver {
	case config.DriverMongo:
		store, err = storage.NewMongoStorage(connectCtx, cfg.MongoURI, cfg.DatabaseName)
	default:
		store, err = storage.NewPostgresStorage(connectCtx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DatabaseDriver, err)
	}
	if err := store.Migrate(connectCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	utils.LogInfo(fmt.Sprintf("Connected to %s successfully", cfg.DatabaseDriver))
	return store, nil
}

// buildDriveChain orders the credential strategies: service account first,
// then the teacher's own Google tokens.
func buildDriveChain(ctx context.Context, cfg *config.Config, store storage.Storage) *services.DriveChain {
	var strategies []services.DriveStrategy

	keyJSON, err := services.LoadServiceAccountKey(cfg.ServiceAccountKey, cfg.ServiceAccountFile)
	switch {
	case err != nil:
		utils.LogWarning("Service account key unreadable, skipping", zap.Error(err))
	case keyJSON != nil:
		sa, err := services.NewServiceAccountStrategy(ctx, keyJSON)
		if err != nil {
			utils.LogWarning("Service account rejected, skipping", zap.Error(err))
		} else {
			strategies = append(strategies, sa)
		}
	}

	// Without a client the strategy still uses access tokens stored by
	// /auth/google/register; it just cannot refresh them.
	var oauthConfig *oauth2.Config
	if cfg.GoogleClientID != "" {
		oauthConfig = services.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}
	strategies = append(strategies, services.NewOAuthStrategy(oauthConfig, store))

	chain := services.NewDriveChain(strategies...)
	utils.LogInfo("Drive credential chain ready", zap.Strings("strategies", chain.Strategies()))
	return chain
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	deps := routes.Dependencies{
		Store: store,
		Chain: buildDriveChain(ctx, cfg, store),
	}

	if cfg.B2Enabled() {
		b2Service, err := services.NewB2Service(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName)
		if err != nil {
			utils.LogWarning("B2 backup disabled", zap.Error(err))
		} else {
			deps.Backup = b2Service
		}
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		deps.States = services.NewRedisStateStore(client)
	} else {
		states := services.NewStateManager()
		states.StartCleanup(ctx, 5*time.Minute)
		deps.States = states
	}

	container := routes.NewServiceContainer(cfg, deps)

	seeded, err := container.CaptchaService.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed captcha questions: %w", err)
	}
	if seeded > 0 {
		utils.LogInfo(fmt.Sprintf("Seeded %d captcha questions", seeded))
	}

	jobs.NewTrashCleaner(container.TrashService, cfg.PurgeInterval).Start(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(container, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo(fmt.Sprintf("Starting server on port %s", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	utils.LogInfo("Shutting down server")
	shutdownCtx, cancel := config.CreateContext(10 * time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(ctx context.Context, cfg *config.Config, teacherID uint, path string) error {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := services.NewExcelService(store).ImportStudents(ctx, teacherID, f)
	if err != nil {
		return err
	}
	fmt.Printf("%s\nadded=%d duplicates=%d skipped=%d total=%d\n",
		result.Message, result.Added, result.Duplicates, result.Skipped, result.Total)
	for _, rowErr := range result.Errors {
		fmt.Println("  " + rowErr)
	}
	return nil
}

// loadEnvFile loads the first .env found near the working directory.
// Plain environment variables are used when none exists.
func loadEnvFile() {
	pwd, err := os.Getwd()
	if err != nil {
		return
	}

	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
		filepath.Join(pwd, ".env"),
		filepath.Join(filepath.Dir(pwd), ".env"),
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", envPath, err)
			continue
		}
		return
	}
}
