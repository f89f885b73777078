package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/cli/browser"
	"github.com/joho/godotenv"
	"github.com/myrjola/runcoach/internal/coachapi"
	"github.com/myrjola/runcoach/internal/envstruct"
	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/flightrecorder"
	"github.com/myrjola/runcoach/internal/logging"
	"github.com/myrjola/runcoach/internal/planstate"
	"github.com/myrjola/runcoach/internal/poll"
	"github.com/myrjola/runcoach/internal/sessionlog"
	"github.com/myrjola/runcoach/internal/sqlite"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	templateFS     fs.FS
	coach          *coachapi.Client
	providers      *planstate.Registry
	sessionLog     *sessionlog.Store
	pollInterval   time.Duration
	now            func() time.Time

	// recorder is nil unless a traces directory is configured.
	recorder *flightrecorder.Recorder
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"RUNCOACH_ADDR" envDefault:"localhost:8082"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"RUNCOACH_SQLITE_URL" envDefault:"./runcoach.sqlite3"`
	// TemplatePath is the path to the directory containing the HTML templates.
	TemplatePath string `env:"RUNCOACH_TEMPLATE_PATH" envDefault:""`
	// APIURL is the base URL of the coach backend.
	APIURL string `env:"RUNCOACH_API_URL" envDefault:"http://localhost:8000"`
	// PollInterval is the first delay between status checks of a running backend job.
	PollInterval time.Duration `env:"RUNCOACH_POLL_INTERVAL" envDefault:"2s"`
	// PollMaxInterval caps the backoff between status checks.
	PollMaxInterval time.Duration `env:"RUNCOACH_POLL_MAX_INTERVAL" envDefault:"30s"`
	// PollMaxDuration is how long a job is polled before it is reported as timed out.
	PollMaxDuration time.Duration `env:"RUNCOACH_POLL_MAX_DURATION" envDefault:"10m"`
	// OpenBrowser opens the client in the default browser once the server listens.
	OpenBrowser bool `env:"RUNCOACH_OPEN_BROWSER" envDefault:"false"`
	// SecureCookies marks the session cookie Secure. Disable it only for plain HTTP development setups.
	SecureCookies bool `env:"RUNCOACH_SECURE_COOKIES" envDefault:"true"`
	// ProviderIdleTimeout is how long the backend state of an unused session stays cached.
	ProviderIdleTimeout time.Duration `env:"RUNCOACH_PROVIDER_IDLE_TIMEOUT" envDefault:"30m"`
	// TracesDirectory receives runtime traces of timed out requests. Empty disables the flight recorder.
	TracesDirectory string `env:"RUNCOACH_TRACES_DIRECTORY" envDefault:""`
}

func (c config) pollPolicy() poll.Policy {
	policy := poll.DefaultPolicy()
	policy.Interval = c.PollInterval
	policy.MaxInterval = c.PollMaxInterval
	policy.MaxDuration = c.PollMaxDuration
	return policy
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var htmlTemplatePath string
	if htmlTemplatePath, err = resolveAndVerifyTemplatePath(cfg.TemplatePath); err != nil {
		return errors.Wrap(err, "resolve template path")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	client, err := coachapi.New(cfg.APIURL, logger)
	if err != nil {
		return errors.Wrap(err, "new coach client", slog.String("url", cfg.APIURL))
	}

	providers := planstate.NewRegistry(ctx, client, cfg.pollPolicy(), logger)
	defer providers.Close()
	if cfg.ProviderIdleTimeout > 0 {
		providers.StartSweeper(cfg.ProviderIdleTimeout)
	}

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite, 24*time.Hour) //nolint:mnd // day
	defer sessionStore.StopCleanup()

	app := application{
		logger:         logger,
		sessionManager: initializeSessionManager(sessionStore, cfg.SecureCookies),
		templateFS:     os.DirFS(htmlTemplatePath),
		coach:          client,
		providers:      providers,
		sessionLog:     sessionlog.NewStore(db, logger),
		pollInterval:   cfg.PollInterval,
		now:            time.Now,
	}

	if cfg.TracesDirectory != "" {
		if app.recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:    logger,
			Directory: cfg.TracesDirectory,
			MinAge:    0,
			MaxBytes:  0,
			Cooldown:  0,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder", slog.String("directory", cfg.TracesDirectory))
		}
		if err = app.recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer app.recorder.Stop(ctx)
	}

	handler, err := app.routes()
	if err != nil {
		return errors.Wrap(err, "configure routes")
	}

	var onListen func(addr string)
	if cfg.OpenBrowser {
		onListen = func(addr string) {
			if openErr := browser.OpenURL("http://" + addr); openErr != nil {
				logger.LogAttrs(ctx, slog.LevelWarn, "open browser", errors.SlogError(openErr))
			}
		}
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, handler, onListen); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func initializeSessionManager(store scs.Store, secure bool) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = store
	sessionManager.Lifetime = 12 * time.Hour //nolint:mnd // half a day
	sessionManager.Cookie.Name = "runcoach_session"
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = secure
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

// dotenvLookup layers the .env file of the working directory under the process environment.
func dotenvLookup(logger *slog.Logger) func(string) (string, bool) {
	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(context.Background(), slog.LevelWarn, "ignoring unreadable .env file", errors.SlogError(err))
	}
	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, dotenvLookup(logger)); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
