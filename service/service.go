package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-social-bot/bot"
	"github.com/saiset-co/sai-social-bot/cache"
	"github.com/saiset-co/sai-social-bot/checkpoint"
	"github.com/saiset-co/sai-social-bot/config"
	"github.com/saiset-co/sai-social-bot/cron"
	"github.com/saiset-co/sai-social-bot/fetcher"
	"github.com/saiset-co/sai-social-bot/generator"
	"github.com/saiset-co/sai-social-bot/llm"
	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/metrics"
	"github.com/saiset-co/sai-social-bot/publisher"
	"github.com/saiset-co/sai-social-bot/social"
	"github.com/saiset-co/sai-social-bot/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	replyCycleJob   = "reply_cycle"
	originalPostJob = "original_post"
)

// Service wires the bot together: config, logger, metrics, cache, checkpoint
// store, the two API clients, and the two scheduled jobs. Start blocks until
// shutdown is requested by signal or context.
type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	configManager   types.ConfigManager
	metricsManager  types.MetricsManager
	cacheManager    types.CacheManager
	cronManager     types.CronManager
	socialClient    types.SocialClient
	llmClient       types.GenerationClient
	replyCycle      *bot.ReplyCycle
	originalPoster  *bot.OriginalPoster
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "config file does not exist")
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
	}

	service.state.Store(StateStopped)

	if err := service.buildComponents(configPath); err != nil {
		cancel()
		return nil, err
	}

	return service, nil
}

func (s *Service) buildComponents(configPath string) error {
	configManager, err := config.NewConfigurationManager(s.ctx, configPath)
	if err != nil {
		return types.WrapError(err, "failed to build config manager")
	}
	s.configManager = configManager

	cfg := configManager.GetConfig()

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		return types.WrapError(err, "failed to build logger")
	}
	s.logger = log

	metricsManager, err := metrics.NewPrometheusMetrics(s.ctx, log, cfg.Metrics)
	if err != nil {
		return types.WrapError(err, "failed to build metrics manager")
	}
	s.metricsManager = metricsManager

	cacheManager, err := cache.NewCacheManager(s.ctx, log, metricsManager, cfg.Cache)
	if err != nil {
		return types.WrapError(err, "failed to build cache manager")
	}
	s.cacheManager = cacheManager

	checkpointStore, err := checkpoint.NewStore(log, cfg.Checkpoint)
	if err != nil {
		return types.WrapError(err, "failed to build checkpoint store")
	}

	s.socialClient = social.NewClient(s.ctx, log, cfg.Social, cfg.Credentials)
	s.llmClient = llm.NewClient(s.ctx, log, cfg.Generation, cfg.Credentials)

	replyGenerator := generator.NewGenerator(log, s.llmClient, cacheManager, cfg.Bot)
	contentFetcher := fetcher.NewFetcher(log, s.socialClient, cacheManager, cfg.Bot)
	pub := publisher.NewPublisher(log, s.socialClient, replyGenerator, cacheManager, cfg.Publisher)

	s.replyCycle = bot.NewReplyCycle(log, contentFetcher, replyGenerator, pub, checkpointStore, cacheManager, cfg.Bot)
	s.originalPoster = bot.NewOriginalPoster(log, replyGenerator, pub, cacheManager, cfg.Bot)

	cronManager, err := cron.NewManager(s.ctx, log, metricsManager, cfg.Cron)
	if err != nil {
		return types.WrapError(err, "failed to build cron manager")
	}
	s.cronManager = cronManager

	return s.registerJobs(cfg.Bot)
}

func (s *Service) registerJobs(cfg *types.BotConfig) error {
	err := s.cronManager.Add(replyCycleJob, fmt.Sprintf("@every %s", cfg.PollInterval), func(ctx context.Context) {
		s.replyCycle.Run(ctx)
	})
	if err != nil {
		return types.WrapError(err, "failed to register reply cycle job")
	}

	err = s.cronManager.Add(originalPostJob, fmt.Sprintf("@every %s", cfg.OriginalCheckInterval), func(ctx context.Context) {
		s.originalPoster.Run(ctx)
	})
	if err != nil {
		return types.WrapError(err, "failed to register original post job")
	}

	return nil
}

// Start brings up the components and blocks until shutdown completes.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServiceAlreadyRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.String("stack", string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger.Info("Starting service",
		zap.Any("name", s.configManager.GetValue("name", "")),
		zap.Any("version", s.configManager.GetValue("version", "")))

	if err := s.startComponents(); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) startComponents() error {
	if err := s.metricsManager.Start(); err != nil && !types.IsError(err, types.ErrServiceAlreadyRunning) {
		s.logger.Error("Failed to start metrics manager", zap.Error(err))
	}

	if err := s.cacheManager.Start(); err != nil {
		return types.WrapError(err, "failed to start cache manager")
	}

	if err := s.cronManager.Start(); err != nil {
		return types.WrapError(err, "failed to start cron manager")
	}

	return nil
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var stopErrors []error

	s.logger.Info("Stopping service components...")

	// Cron first so no new cycle starts while clients shut down.
	if err := s.cronManager.Stop(); err != nil && !types.IsError(err, types.ErrServiceIsNotRunning) {
		s.logger.Error("Failed to stop cron manager", zap.Error(err))
		stopErrors = append(stopErrors, err)
	}

	s.socialClient.Close()
	s.llmClient.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if err := s.cacheManager.Stop(); err != nil && !types.IsError(err, types.ErrServiceIsNotRunning) {
				s.logger.Error("Failed to stop cache manager", zap.Error(err))
				return err
			}
			return nil
		}
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		default:
			if err := s.metricsManager.Stop(); err != nil && !types.IsError(err, types.ErrServiceIsNotRunning) {
				s.logger.Error("Failed to stop metrics manager", zap.Error(err))
				return err
			}
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			stopErrors = append(stopErrors, err)
		}
	}

	if len(stopErrors) > 0 {
		return types.NewErrorf("errors during shutdown: %v", stopErrors)
	}

	s.logger.Info("All components stopped successfully")
	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger.Info("Service context cancelled")
		}

		signal.Stop(sigChan)
		close(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger.Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger.Info("Service shutdown: context done")
	}
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
