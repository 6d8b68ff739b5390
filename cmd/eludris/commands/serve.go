package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api"
	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/effis"
	"github.com/eludris/eludris/pkg/email"
	"github.com/eludris/eludris/pkg/embeds"
	"github.com/eludris/eludris/pkg/filestore"
	"github.com/eludris/eludris/pkg/gateway"
	"github.com/eludris/eludris/pkg/ids"
	"github.com/eludris/eludris/pkg/presence"
	"github.com/eludris/eludris/pkg/pubsub"
	"github.com/eludris/eludris/pkg/ratelimit"
	"github.com/eludris/eludris/pkg/store"
)

const (
	sweepInterval    = time.Hour
	maxUnverifiedAge = 7 * 24 * time.Hour
)

// services holds everything the servers share.
type services struct {
	cfg      *config.Config
	cache    *cache.Cache
	db       *store.Store
	tokens   *auth.TokenService
	limiter  *ratelimit.Limiter
	pub      *pubsub.Publisher
	subs     *pubsub.Subscriber
	presence *presence.Service
	crawler  *embeds.Crawler
	mail     *email.Service
}

// bootstrap loads configuration, initializes logging and connects the shared
// backends.
func bootstrap(ctx context.Context) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, err
	}

	c, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	db, err := store.New(ctx, cfg.Database, ids.NewGenerator(cfg.WorkerID))
	if err != nil {
		return nil, err
	}

	pub := pubsub.NewPublisher(c)

	var mailer email.Mailer
	var subjects map[string]string
	if cfg.Email != nil {
		mailer = email.NewSMTPMailer(*cfg.Email)
		subjects = cfg.Email.Subjects
	}

	return &services{
		cfg:      cfg,
		cache:    c,
		db:       db,
		tokens:   auth.NewTokenService(cfg.Secret),
		limiter:  ratelimit.NewLimiter(c),
		pub:      pub,
		subs:     pubsub.NewSubscriber(c),
		presence: presence.NewService(c, pub),
		crawler:  embeds.NewCrawler(c),
		mail:     email.NewService(mailer, c, subjects, cfg.InstanceName),
	}, nil
}

func (s *services) apiServer() *api.Server {
	return api.NewServer(s.cfg, api.Deps{
		DB:       s.db,
		Tokens:   s.tokens,
		Limiter:  s.limiter,
		Pub:      s.pub,
		Presence: s.presence,
		Crawler:  s.crawler,
		Mail:     s.mail,
	})
}

func (s *services) gatewayServer() *gateway.Server {
	return gateway.NewServer(s.cfg, s.tokens, s.db, s.limiter, s.presence, s.subs)
}

func (s *services) fileServer() (*effis.Server, error) {
	files, err := filestore.New(s.cfg.Effis.Path, s.db)
	if err != nil {
		return nil, err
	}
	return effis.NewServer(s.cfg, files, s.limiter), nil
}

// sweepUsers periodically hard-deletes unverified accounts that never
// completed verification.
func (s *services) sweepUsers(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := s.db.SweepUsers(ctx, maxUnverifiedAge)
			if err != nil {
				logger.Error("user sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("swept unverified users", "count", removed)
			}
		}
	}
}

// run wires the signal handler and runs the given servers until one fails or
// a shutdown signal arrives.
func run(start func(ctx context.Context, g *errgroup.Group, s *services) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer s.db.Close()
	defer s.cache.Close()

	g, gctx := errgroup.WithContext(ctx)
	if err := start(gctx, g, s); err != nil {
		return err
	}
	return g.Wait()
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run Oprish, the REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *errgroup.Group, s *services) error {
			srv := s.apiServer()
			g.Go(func() error { return srv.Start(ctx) })
			g.Go(func() error { return s.sweepUsers(ctx) })
			return nil
		})
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run Pandemonium, the WebSocket gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *errgroup.Group, s *services) error {
			srv := s.gatewayServer()
			g.Go(func() error { return srv.Start(ctx) })
			return nil
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Run Effis, the file server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *errgroup.Group, s *services) error {
			srv, err := s.fileServer()
			if err != nil {
				return err
			}
			g.Go(func() error { return srv.Start(ctx) })
			return nil
		})
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run all three services in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, g *errgroup.Group, s *services) error {
			apiSrv := s.apiServer()
			gwSrv := s.gatewayServer()
			fileSrv, err := s.fileServer()
			if err != nil {
				return err
			}
			g.Go(func() error { return apiSrv.Start(ctx) })
			g.Go(func() error { return gwSrv.Start(ctx) })
			g.Go(func() error { return fileSrv.Start(ctx) })
			g.Go(func() error { return s.sweepUsers(ctx) })
			return nil
		})
	},
}
