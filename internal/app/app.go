package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/ecobingo/internal/auth"
	"github.com/abrezinsky/ecobingo/internal/cache"
	"github.com/abrezinsky/ecobingo/internal/config"
	"github.com/abrezinsky/ecobingo/internal/events"
	"github.com/abrezinsky/ecobingo/internal/fraud"
	"github.com/abrezinsky/ecobingo/internal/handlers"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/photostore"
	"github.com/abrezinsky/ecobingo/internal/repository"
	"github.com/abrezinsky/ecobingo/internal/services"
	"github.com/abrezinsky/ecobingo/internal/websocket"
)

// App holds all application dependencies
type App struct {
	log         logger.Logger
	cfg         config.Config
	handlers    *handlers.Handlers
	repo        *repository.Repository
	hub         *websocket.Hub
	auth        *auth.Auth
	tasks       *services.TaskService
	leaderboard *services.LeaderboardService
	baseURL     string
	closers     []io.Closer

	mu        sync.Mutex
	server    *http.Server
	closeOnce sync.Once
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg config.Config) (*App, error) {
	ctx := context.Background()

	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{log: log, cfg: cfg, repo: repo}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.cfg

	sigCache, err := a.signatureCache(ctx)
	if err != nil {
		return err
	}
	photos, err := a.photoStore(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()

	a.hub = websocket.New(a.log)
	a.hub.Start()

	publishers := []events.Publisher{events.NewHubPublisher(a.hub)}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(a.log, cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, kp)
		publishers = append(publishers, kp)
		a.log.Info("Publishing events to Kafka", "brokers", strings.Join(cfg.KafkaBrokers, ","), "topic", cfg.KafkaTopic)
	}
	publisher := events.NewFanout(a.log, publishers...)

	detector := fraud.NewDetector(a.log, a.repo, photos, sigCache, fraud.Options{
		Threshold:    cfg.FraudThreshold,
		SignatureTTL: cfg.SignatureTTL,
	})
	detector.SetMetrics(m)

	achievementService := services.NewAchievementService(a.log, a.repo, publisher)
	achievementService.SetMetrics(m)

	submissionService := services.NewSubmissionService(a.log, a.repo, photos, detector, achievementService,
		cfg.FraudScope == config.FraudScopeUser)
	submissionService.SetPublisher(publisher)
	submissionService.SetMetrics(m)

	a.leaderboard = services.NewLeaderboardService(a.log, a.repo, publisher)

	a.baseURL = cfg.BaseURL
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL(realNetworkProvider{}, cfg.ListenAddr)
	}
	a.tasks = services.NewTaskService(a.log, a.repo, a.baseURL)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		a.log.Warn("No JWT secret configured, tokens will not survive a restart")
	}
	a.auth = auth.New(secret, cfg.TokenTTL, a.repo)

	if cfg.HTTPLogging {
		a.log.EnableHTTPLogging()
	}

	a.handlers = handlers.New(submissionService, achievementService, a.leaderboard, a.tasks, a.auth, a.hub, m, a.log)
	a.handlers.Ping = a.repo.Ping

	a.log.Info("Fraud detection configured", "threshold", cfg.FraudThreshold, "scope", cfg.FraudScope)
	return nil
}

func (a *App) signatureCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.RedisAddr == "" {
		return cache.NewMemory(), nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
		Prefix:   "ecobingo:",
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rc)
	a.log.Info("Using Redis signature cache", "addr", a.cfg.RedisAddr)
	return rc, nil
}

func (a *App) photoStore(ctx context.Context) (photostore.Store, error) {
	switch a.cfg.PhotoBackend {
	case config.PhotoBackendS3:
		a.log.Info("Storing photos in S3", "bucket", a.cfg.S3Bucket)
		return photostore.NewS3(ctx, photostore.S3Config{
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
			Prefix:    "photos/",
		})
	default:
		return photostore.NewFS(a.cfg.PhotoDir)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL is the link base used for QR codes and console shortcuts
func (a *App) BaseURL() string {
	return a.baseURL
}

// Seed loads the task catalog into an empty database and creates the
// default accounts
func (a *App) Seed(ctx context.Context) (int, []models.User, error) {
	n, err := a.tasks.SeedCatalog(ctx)
	if err != nil {
		return 0, nil, err
	}
	users, err := a.tasks.SeedUsers(ctx)
	if err != nil {
		return n, nil, err
	}
	return n, users, nil
}

// ResetMonthly zeroes monthly points. Without force it only acts on the
// first of the month.
func (a *App) ResetMonthly(ctx context.Context, force bool) (*services.ResetResult, error) {
	return a.leaderboard.ResetMonthly(ctx, time.Now(), force)
}

// IssueToken signs a bearer token for an existing user
func (a *App) IssueToken(ctx context.Context, username string) (string, error) {
	user, err := a.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("unknown user %q", username)
	}
	if err != nil {
		return "", err
	}
	return a.auth.Issue(user.Username, user.Role)
}

// Close performs graceful shutdown of app resources. Safe to call more
// than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.hub != nil {
			a.hub.Stop()
		}
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				a.log.Warn("Close failed", "error", err)
			}
		}
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Database close failed", "error", err)
		}
	})
}

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Shutdown returns nil.
func (a *App) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	a.log.Info("Server starting", "addr", addr, "url", a.baseURL)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// defaultBaseURL builds the link base used in QR codes when none is
// configured. Wildcard listen addresses are replaced with the LAN IP so
// phones on the same network can follow the link.
func defaultBaseURL(provider networkProvider, addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = getPreferredIP(provider)
	}
	return "http://" + net.JoinHostPort(host, port)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IPv4 address for LAN access, preferring
// private ranges. Falls back to localhost.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
