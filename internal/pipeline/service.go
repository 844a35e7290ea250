package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"signalengine/internal/broker"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
)

const jobChannelDepth = 256

// ServiceConfig wires a Service to its concrete dependencies.
type ServiceConfig struct {
	Symbols         []string
	EvalInterval    time.Duration
	Concurrency     int
	PrimaryInterval string

	RedisAddr     string
	RedisPassword string
	ConsumerGroup string
	ConsumerName  string
	MaxLen        int64

	PELReclaimInterval time.Duration
	PELMinIdle         time.Duration

	Store   model.Store
	Cache   model.Cache
	Metrics *metrics.Metrics
}

// Service orchestrates the Scheduler and the three worker pools (Fetch,
// Evaluate, Store) over their respective Redis-Streams queues.
type Service struct {
	cfg      ServiceConfig
	handlers *Handlers

	fetchQ *broker.RedisBroker
	evalQ  *broker.RedisBroker
	storeQ *broker.RedisBroker
}

// New connects the three stage queues and builds a Service.
func New(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	mk := func(stream string) (*broker.RedisBroker, error) {
		return broker.New(ctx, broker.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			Stream:        stream,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
			MaxLen:        cfg.MaxLen,
		})
	}

	fetchQ, err := mk(model.FetchStream)
	if err != nil {
		return nil, err
	}
	evalQ, err := mk(model.EvalStream)
	if err != nil {
		fetchQ.Close()
		return nil, err
	}
	storeQ, err := mk(model.StoreStream)
	if err != nil {
		fetchQ.Close()
		evalQ.Close()
		return nil, err
	}

	return &Service{
		cfg: cfg,
		handlers: &Handlers{
			Store:           cfg.Store,
			Cache:           cfg.Cache,
			PrimaryInterval: cfg.PrimaryInterval,
			Metrics:         cfg.Metrics,
		},
		fetchQ: fetchQ,
		evalQ:  evalQ,
		storeQ: storeQ,
	}, nil
}

// Run starts the scheduler and every worker pool, blocking until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	scheduler := &Scheduler{
		Symbols:  s.cfg.Symbols,
		Interval: s.cfg.EvalInterval,
		Fetch:    s.fetchQ,
	}
	go scheduler.Run(ctx)

	s.runStage(ctx, "fetch", s.fetchQ, s.processFetch)
	s.runStage(ctx, "evaluate", s.evalQ, s.processEvaluate)
	s.runStage(ctx, "store", s.storeQ, s.processStore)

	<-ctx.Done()
}

// runStage wires recovery, the PEL reclaimer, the consumer read loop, and a
// bounded pool of processing goroutines for one stage.
func (s *Service) runStage(ctx context.Context, stage string, q *broker.RedisBroker, process func(context.Context, model.Job)) {
	jobs := make(chan model.Job, jobChannelDepth)

	go func() {
		if err := q.RecoverPending(ctx, jobs); err != nil {
			slog.Error("pipeline: recover pending failed", "stage", stage, "error", err)
		}
	}()

	go q.StartReclaimer(ctx, s.cfg.PELReclaimInterval, s.cfg.PELMinIdle, jobs)

	go func() {
		if err := q.Consume(ctx, jobs); err != nil && ctx.Err() == nil {
			slog.Error("pipeline: consume failed", "stage", stage, "error", err)
		}
	}()

	concurrency := s.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					process(ctx, job)
				}
			}
		}()
	}
}

func (s *Service) processFetch(ctx context.Context, job model.Job) {
	var in model.FetchCandlesJob
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		slog.Error("pipeline: malformed fetch job, dropping", "job_id", job.ID, "error", err)
		s.ack(ctx, s.fetchQ, job.ID)
		return
	}

	out, err := s.handlers.FetchCandles(ctx, in)
	if err != nil {
		s.countFailure(ctx, "fetch", job, err)
		return
	}

	payload, err := json.Marshal(out)
	if err != nil {
		slog.Error("pipeline: marshal evaluate job failed", "symbol", in.Symbol, "error", err)
		return
	}
	if err := s.evalQ.Push(ctx, payload); err != nil {
		slog.Error("pipeline: enqueue evaluate job failed", "symbol", in.Symbol, "error", err)
		return
	}
	s.recordJob("fetch")
	s.ack(ctx, s.fetchQ, job.ID)
}

func (s *Service) processEvaluate(ctx context.Context, job model.Job) {
	var in model.EvaluateSignalJob
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		slog.Error("pipeline: malformed evaluate job, dropping", "job_id", job.ID, "error", err)
		s.ack(ctx, s.evalQ, job.ID)
		return
	}

	storeJobs, err := s.handlers.EvaluateSignal(ctx, in)
	if err != nil {
		s.countFailure(ctx, "evaluate", job, err)
		return
	}

	for _, sj := range storeJobs {
		payload, err := json.Marshal(sj)
		if err != nil {
			slog.Error("pipeline: marshal store job failed", "strategy_id", sj.StrategyID, "error", err)
			continue
		}
		if err := s.storeQ.Push(ctx, payload); err != nil {
			slog.Error("pipeline: enqueue store job failed", "strategy_id", sj.StrategyID, "error", err)
		}
	}
	s.recordJob("evaluate")
	s.ack(ctx, s.evalQ, job.ID)
}

func (s *Service) processStore(ctx context.Context, job model.Job) {
	var in model.StoreSignalJob
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		slog.Error("pipeline: malformed store job, dropping", "job_id", job.ID, "error", err)
		s.ack(ctx, s.storeQ, job.ID)
		return
	}

	if err := s.handlers.StoreSignal(ctx, in); err != nil {
		s.countFailure(ctx, "store", job, err)
		return
	}
	s.recordJob("store")
	s.ack(ctx, s.storeQ, job.ID)
}

// countFailure logs a stage error. Retryable failures are left un-acked in
// the stage's pending entries list: another consumer's PEL reclaimer
// redelivers (and eventually dead-letters) them, and this consumer's own
// RecoverPending redelivers them at its next startup (its own reclaimer
// skips entries it owns). Non-retryable failures are acked immediately
// since no amount of redelivery would change the outcome.
func (s *Service) countFailure(ctx context.Context, stage string, job model.Job, err error) {
	if broker.IsRetryable(err) {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.JobsRetriedTotal.WithLabelValues(stage).Inc()
		}
		slog.Warn("pipeline: retryable stage failure, leaving pending for reclaim", "stage", stage, "job_id", job.ID, "error", err)
		return
	}
	slog.Error("pipeline: non-retryable stage failure, dropping", "stage", stage, "job_id", job.ID, "error", err)
	switch stage {
	case "fetch":
		s.ack(ctx, s.fetchQ, job.ID)
	case "evaluate":
		s.ack(ctx, s.evalQ, job.ID)
	case "store":
		s.ack(ctx, s.storeQ, job.ID)
	}
}

func (s *Service) recordJob(stage string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.JobsProcessedTotal.WithLabelValues(stage).Inc()
	}
}

func (s *Service) ack(ctx context.Context, q *broker.RedisBroker, jobID string) {
	if err := q.Ack(ctx, jobID); err != nil {
		slog.Error("pipeline: ack failed", "job_id", jobID, "error", err)
	}
}

// Close releases the three stage queues.
func (s *Service) Close() {
	s.fetchQ.Close()
	s.evalQ.Close()
	s.storeQ.Close()
}
