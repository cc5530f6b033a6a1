package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/worker"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

// PaymentReconciler periodically settles pending purchases whose notification never arrived,
// by asking the gateway for its own record of the order. It only runs when the gateway can
// retrieve payments.
type PaymentReconciler struct {
	checkout usecase.CheckoutUseCase
	ledger   usecase.LedgerUseCase
	pool     *worker.Pool
	limiter  *rate.Limiter
	cfg      config.SchedulerConfig
	log      *zerolog.Logger
	now      func() time.Time

	cron *cron.Cron
}

func NewPaymentReconciler(
	checkout usecase.CheckoutUseCase,
	ledger usecase.LedgerUseCase,
	pool *worker.Pool,
	cfg config.SchedulerConfig,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &PaymentReconciler{
		checkout: checkout,
		ledger:   ledger,
		pool:     pool,
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
		log:      logging.OrNop(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules sweeps on cfg.ReconcileCron. Overlapping sweeps are skipped.
func (r *PaymentReconciler) Start(ctx context.Context) error {
	cl := cronLogger{log: r.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(r.cfg.ReconcileCron, func() {
		if ctx.Err() != nil {
			metrics.IncReconcilerRun("skipped")
			return
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error().Err(err).Msg("payment reconciliation sweep failed")
		}
	}); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.log.Info().Str("schedule", r.cfg.ReconcileCron).Dur("stale_after", r.cfg.StaleAfter).Msg("payment reconciler started")
	return nil
}

// Stop prevents new sweeps and waits for a running one to finish or ctx to expire.
func (r *PaymentReconciler) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sweeps one batch of stale pending purchases and returns how many it examined.
func (r *PaymentReconciler) RunOnce(ctx context.Context) (int, error) {
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "PaymentReconciler.RunOnce")()

	cutoff := r.now().Add(-r.cfg.StaleAfter)
	pending, err := r.ledger.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		metrics.IncReconcilerRun("error")
		return 0, err
	}

	var wg sync.WaitGroup
	submitted := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		// the sweep context, not the pool's, bounds each reconciliation
		err := r.pool.SubmitWait(ctx, func(context.Context) error {
			defer wg.Done()
			return r.reconcile(ctx, p)
		})
		if err != nil {
			wg.Done()
			break
		}
		submitted++
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Int("submitted", submitted).Int("batch", len(pending)).Msg("reconciliation sweep interrupted")
		metrics.IncReconcilerRun("error")
		return submitted, err
	}

	metrics.IncReconcilerRun("ok")
	if submitted > 0 {
		log.Info().Int("examined", submitted).Msg("payment reconciliation sweep done")
	}
	return submitted, nil
}

func (r *PaymentReconciler) reconcile(ctx context.Context, p *model.Purchase) error {
	if err := r.limiter.Wait(ctx); err != nil {
		metrics.IncReconciled("error")
		return err
	}
	outcome, err := r.checkout.Reconcile(ctx, p, r.cfg.AbandonAfter)
	if err != nil {
		metrics.IncReconciled("error")
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	metrics.IncReconciled(string(outcome))
	if outcome != usecase.ReconcileUnchanged {
		logging.With(logging.WithOrderID(ctx, p.OrderID), r.log).Info().
			Str("outcome", string(outcome)).
			Msg("pending purchase reconciled")
	}
	return nil
}

// cronLogger routes cron's own logging into zerolog.
type cronLogger struct{ log *zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
