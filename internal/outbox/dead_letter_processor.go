package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
	"github.com/relieftrack/shipment-tracking-api/pkg/retry"
)

// DeadLetterProcessor replays parked messages through their handlers
// with backoff, discarding messages that still cannot be delivered.
type DeadLetterProcessor struct {
	dlqRepo         *repository.DeadLetterRepository
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	backoffStrategy retry.BackoffStrategy
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// DeadLetterProcessorConfig holds the configuration for the DeadLetterProcessor
type DeadLetterProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	BackoffStrategy retry.BackoffStrategy
}

// NewDeadLetterProcessor creates a new dead letter processor
func NewDeadLetterProcessor(
	dlqRepo *repository.DeadLetterRepository,
	logger logger.Logger,
	config *DeadLetterProcessorConfig,
) *DeadLetterProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	backoffStrategy := config.BackoffStrategy

	if backoffStrategy == nil {
		backoffStrategy = retry.NewDefaultExponentialBackoff()
	}

	return &DeadLetterProcessor{
		dlqRepo:         dlqRepo,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		backoffStrategy: backoffStrategy,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *DeadLetterProcessor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the dead letter processor
func (p *DeadLetterProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processDLQ()
	}()

	p.logger.Info("Dead letter processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize,
		"maxRetries", p.maxRetries)
}

// Stop stops the dead letter processor
func (p *DeadLetterProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Dead letter processor stopped")
}

// processDLQ processes messages from the dead letter queue
func (p *DeadLetterProcessor) processDLQ() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.processBatch(); err != nil {
				p.logger.Error("Failed to process dead letter batch", "error", err)
			}
		}
	}
}

// processBatch processes a batch of messages from the dead letter queue
func (p *DeadLetterProcessor) processBatch() error {
	ctx, cancel := context.WithTimeout(p.ctx, p.pollingInterval)
	defer cancel()

	messages, err := p.dlqRepo.GetPendingMessages(ctx, p.batchSize)

	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Info("Processing batch of dead letter messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process dead letter message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType,
				"retryCount", msg.RetryCount)

			continue
		}
	}

	return nil
}

// processMessage processes a single dead letter message
func (p *DeadLetterProcessor) processMessage(ctx context.Context, msg *models.DeadLetterMessage) error {
	if err := p.dlqRepo.MarkAsRetrying(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as retrying: %w", err)
	}

	handler, exists := p.handlers[msg.EventType]

	if !exists {
		p.logger.Error("No handler registered for event type", "eventType", msg.EventType, "messageID", msg.ID)

		if err := p.dlqRepo.MarkAsDiscarded(ctx, msg.ID, "No handler available"); err != nil {
			p.logger.Error("Failed to mark message as discarded",
				"error", err,
				"messageID", msg.ID)
		}

		return fmt.Errorf("no handler registered for event type %s", msg.EventType)
	}

	// Rehydrate an outbox message so the handler sees its usual shape
	outboxMsg := &models.OutboxMessage{
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		CreatedAt:     time.Now().UTC(),
		Status:        models.OutboxStatusPending,
	}

	retryConfig := &retry.RetryConfig{
		MaxAttempts:     p.maxRetries,
		BackoffStrategy: p.backoffStrategy,
		Logger:          p.logger,
	}

	retryFunc := func() error {
		return handler.HandleMessage(ctx, outboxMsg)
	}

	discardFunc := func(err error) error {
		reason := fmt.Sprintf("Failed to process message after %d attempts: %v", p.maxRetries, err)

		if markErr := p.dlqRepo.MarkAsDiscarded(ctx, msg.ID, reason); markErr != nil {
			p.logger.Error("Failed to mark message as discarded",
				"error", markErr,
				"messageID", msg.ID)
		}

		return fmt.Errorf("message discarded after %d retries: %w", p.maxRetries, err)
	}

	err := retry.RetryWithDiscard(ctx, retryFunc, retryConfig, discardFunc)

	if err != nil {
		return err
	}

	if err := p.dlqRepo.MarkAsResolved(ctx, msg.ID); err != nil {
		p.logger.Error("Failed to mark dead letter message as resolved", "error", err, "messageID", msg.ID)
		return fmt.Errorf("failed to mark message as resolved: %w", err)
	}

	p.logger.Info("Successfully processed dead letter message",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}
