package trader

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autotrader/src/connectors"
	"autotrader/src/database"
	"autotrader/src/events"
	"autotrader/src/executors"
	"autotrader/src/lock"
	"autotrader/src/marketdata"
	"autotrader/src/oracle"
	"autotrader/src/repository"
	"autotrader/src/risk"
	"autotrader/src/server"
	sig "autotrader/src/signal"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Trader wires the configured feed, venue, detector and sinks into a
// supervisor and serves its state over HTTP until interrupted.
type Trader struct {
	Log *logger.Entry
}

type components struct {
	supervisor *executors.Supervisor
	tradeLog   *repository.TradeEventRepository
	closers    []func() error
}

func (c *components) close(log *logger.Entry) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.WithError(err).Warn("close failed")
		}
	}
}

func (t *Trader) Start() error {
	if t.Log == nil {
		t.Log = logger.WithField("cmd", "trader")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := database.GetConfig()
	var db *gorm.DB
	if dbConfig.EnableDB {
		if err := database.InitMainDB(); err != nil {
			t.Log.WithError(err).Error("Failed to connect to main database")
			return err
		}
		db = database.MainDB
	}

	cfg, err := executors.LoadConfig()
	if err != nil {
		return err
	}
	c, err := build(cfg, db, t.Log)
	if err != nil {
		t.Log.WithError(err).Error("Failed to build trading components")
		return err
	}
	defer c.close(t.Log)

	if err := c.supervisor.Start(ctx, cfg.UserID, cfg.Symbols); err != nil {
		// Pairs that did start keep running; the failed ones are reported.
		t.Log.WithError(err).Error("Some pairs failed to start")
	}

	srvConfig := server.GetConfig()
	var tradeEvents server.TradeEvents
	if c.tradeLog != nil {
		tradeEvents = c.tradeLog
	}
	err = server.Run(ctx, srvConfig.Port, server.NewRouter(c.supervisor, tradeEvents), srvConfig.ShutdownTimeout)

	t.Log.Info("Stopping trading tasks")
	c.supervisor.StopAll()
	return err
}

// build assembles every collaborator. db may be nil, in which case nothing
// is persisted and positions start flat.
func build(cfg executors.Config, db *gorm.DB, log *logger.Entry) (*components, error) {
	c := &components{}
	fail := func(err error) (*components, error) {
		c.close(log)
		return nil, err
	}

	var store marketdata.CandleStore
	if db != nil {
		c.tradeLog = repository.NewTradeEventRepositoryWithDB(db)
		store = repository.NewOHLCVRepositoryWithDB(db)
	}

	mdConfig, err := marketdata.LoadConfig()
	if err != nil {
		return fail(err)
	}
	feed, err := marketdata.New(mdConfig, store)
	if err != nil {
		return fail(err)
	}

	venueConfig, err := connectors.LoadConfig()
	if err != nil {
		return fail(err)
	}
	var quoter marketdata.Quoter = marketdata.TickQuoter{Port: feed}
	if q, ok := feed.(marketdata.Quoter); ok {
		quoter = q
	}
	venue, err := connectors.NewExecutionPort(venueConfig, quoter, nil)
	if err != nil {
		return fail(err)
	}

	var scorer sig.ScoringOracle
	if cfg.DetectorMode == executors.DetectorOracle {
		oracleConfig, err := oracle.LoadConfig()
		if err != nil {
			return fail(err)
		}
		onnx, err := oracle.NewONNXOracle(oracleConfig, sig.FeatureCount)
		if err != nil {
			return fail(fmt.Errorf("load oracle model: %w", err))
		}
		c.closers = append(c.closers, func() error { onnx.Close(); return nil })
		scorer = onnx
	}
	detector, threshold, err := executors.BuildDetector(cfg, scorer)
	if err != nil {
		return fail(err)
	}

	riskManager, err := risk.NewManager(risk.GetConfig())
	if err != nil {
		return fail(err)
	}

	sink, err := buildSink(c)
	if err != nil {
		return fail(err)
	}

	lockConfig, err := lock.LoadConfig()
	if err != nil {
		return fail(err)
	}
	lease := lock.New(lockConfig)
	c.closers = append(c.closers, lease.Close)

	deps := executors.Deps{
		Feed:      feed,
		Venue:     venue,
		Detector:  detector,
		Risk:      riskManager,
		Sink:      sink,
		Threshold: threshold,
	}
	opts := []executors.Option{executors.WithLock(lease)}
	if db != nil {
		deps.Exceptions = repository.NewExceptionRepositoryWithDB(db)
		opts = append(opts, executors.WithRestorer(c.tradeLog))
	}

	c.supervisor, err = executors.NewSupervisor(cfg, deps, opts...)
	if err != nil {
		return fail(err)
	}
	log.WithFields(logger.Fields{
		"user_id":  cfg.UserID,
		"symbols":  cfg.Symbols,
		"feed":     mdConfig.Source,
		"venue":    venueConfig.Mode,
		"detector": cfg.DetectorMode,
	}).Info("Trading components ready")
	return c, nil
}

// buildSink fans trade events out to the database log and, when brokers are
// configured, to Kafka.
func buildSink(c *components) (events.Sink, error) {
	var sinks events.MultiSink
	if c.tradeLog != nil {
		sinks = append(sinks, c.tradeLog)
	}
	eventsConfig, err := events.LoadConfig()
	if err != nil {
		return nil, err
	}
	if eventsConfig.Enabled() {
		publisher, err := events.NewKafkaPublisher(eventsConfig)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, publisher.Close)
		sinks = append(sinks, publisher)
	}
	if len(sinks) == 0 {
		return events.Discard, nil
	}
	return sinks, nil
}
