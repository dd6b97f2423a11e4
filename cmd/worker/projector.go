package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/clipgate/internal/config"
	"github.com/jmehdipour/clipgate/internal/db"
	"github.com/jmehdipour/clipgate/internal/kafka"
	"github.com/jmehdipour/clipgate/internal/logger"
	"github.com/jmehdipour/clipgate/internal/metrics"
	"github.com/jmehdipour/clipgate/internal/repository"
	"github.com/jmehdipour/clipgate/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsAddr string

var projectorCmd = &cobra.Command{
	Use:   "projector",
	Short: "Project outbox events from Kafka into ClickHouse",
	RunE:  runProjector,
}

func init() {
	projectorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (empty disables)")
}

func runProjector(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = repository.EventsTopic
	}
	kcfg := cfg.Kafka
	kcfg.Topic = topic
	consumer, err := kafka.NewConsumer(kcfg)
	if err != nil {
		return err
	}
	defer consumer.Close()

	p := worker.NewProjector(consumer, repository.NewCHSubmissionsRepository(chDB), log)

	// tune knobs
	if cfg.Projector.BatchSize > 0 {
		p.BatchSize = cfg.Projector.BatchSize
	}
	if cfg.Projector.BatchWait > 0 {
		p.BatchWait = cfg.Projector.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server exited", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	log.Info("projector started",
		zap.String("topic", topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", p.BatchSize),
		zap.Duration("batch_wait", p.BatchWait))

	return p.Run(ctx)
}
