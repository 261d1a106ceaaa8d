package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alumniport/donation-gateway/internal/config"
	"github.com/alumniport/donation-gateway/internal/queue"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/redis"
	"github.com/alumniport/donation-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 15
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

const consumerInstances = 4
const workerPoolSize = 32

// Processor handles one queue message.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// DispatcherService consumes the intent stream and fans messages out to a
// worker pool. Handler failures leave the intent pending; the queue's claim
// loop retries it and eventually dead-letters it.
type DispatcherService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	reconcile *Reconciler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewDispatcherService(adapter redis.RedisAdapter, processor Processor, reconcile *Reconciler) *DispatcherService {
	ctx, cancel := context.WithCancel(context.Background())
	return &DispatcherService{
		adapter:   adapter,
		queues:    make([]*queue.Queue, 0, consumerInstances),
		processor: processor,
		reconcile: reconcile,
		ctx:       ctx,
		cancel:    cancel,
		worker:    worker.NewWorkerManager(10_000, workerPoolSize, nil),
	}
}

func (s *DispatcherService) Start() error {
	logger.Info("starting notification dispatcher...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < consumerInstances; i++ {
		queueConfig := queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", config.Get().QueueConsumerName, i),
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		}

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.healthChecker()

	if s.reconcile != nil {
		s.wg.Add(1)
		go s.reconcileLoop()
	}

	logger.Info("notification dispatcher started",
		"consumers", len(s.queues), "workers", workerPoolSize)
	return nil
}

func (s *DispatcherService) reconcileLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reconcile.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.reconcile.Sweep(s.ctx); err != nil {
				logger.Error("reconcile sweep failed", "error", err)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *DispatcherService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *DispatcherService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("queue stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingMessages > 10000 {
			logger.Warn("intent stream has high lag", "queue", i, "pending_messages", stats.PendingMessages)
		}
	}
}

// Stop drains the consumers and worker pool.
func (s *DispatcherService) Stop() {
	logger.Info("shutting down notification dispatcher...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, queue *queue.Queue) {
			if err := queue.Stop(timeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()

	logger.Info("notification dispatcher stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler bridges the queue consumer to the worker pool and blocks
// until the worker reports an outcome, so ack semantics stay with the queue.
func (s *DispatcherService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}

	s.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process intent: %w", msgCtx.Err())
	}
}

func (s *DispatcherService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	resultErr := s.processor.Process(jobRes.ctx, jobRes.msg)
	if resultErr != nil {
		logger.Error("failed to process intent", "worker", workerIndex, "error", resultErr)
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("context cancelled while sending result", "worker", workerIndex)
	}
}
