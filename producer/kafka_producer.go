// Package producer delivers pipeline output to its consumers: a Kafka topic
// for the persistence service and GeoJSON files for map review.
package producer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/boyangli/landfillmap-producer/config"
	"github.com/boyangli/landfillmap-producer/models"
)

// Message header keys
const (
	HeaderRunID    = "run_id"
	HeaderCategory = "landfill_category"
	HeaderRegion   = "region"
)

// KafkaProducer publishes detection estimates to a Kafka topic
type KafkaProducer struct {
	producer     *kafka.Producer
	config       *config.KafkaConfig
	deliveryChan chan kafka.Event
	logger       *zap.Logger

	// Metrics
	messagesSent   atomic.Int64
	messagesAcked  atomic.Int64
	messagesFailed atomic.Int64
	produceErrors  atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Retry configuration
	maxRetries  int
	baseBackoff time.Duration
}

// NewKafkaProducer creates a new thread-safe Kafka producer
func NewKafkaProducer(cfg *config.KafkaConfig, logger *zap.Logger) (*KafkaProducer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	producerConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"security.protocol": cfg.SecurityProtocol,
		"sasl.mechanism":    cfg.SASLMechanism,
		"sasl.username":     cfg.SASLUsername,
		"sasl.password":     cfg.SASLPassword,

		"compression.type":                      cfg.CompressionType,
		"acks":                                  cfg.Acks,
		"max.in.flight.requests.per.connection": cfg.MaxInFlight,
		"linger.ms":                             cfg.LingerMS,
		"batch.size":                            cfg.BatchSize,

		// Idempotence for exactly-once semantics
		"enable.idempotence": true,

		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	}

	p, err := kafka.NewProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	kp := &KafkaProducer{
		producer:     p,
		config:       cfg,
		deliveryChan: make(chan kafka.Event, 10000),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		maxRetries:   cfg.MaxRetries,
		baseBackoff:  cfg.RetryBackoff,
	}

	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	logger.Info("kafka producer initialized",
		zap.String("topic", cfg.Topic),
		zap.String("servers", cfg.BootstrapServers),
	)
	return kp, nil
}

// handleDeliveryReports processes delivery confirmations in a separate goroutine
func (kp *KafkaProducer) handleDeliveryReports() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.ctx.Done():
			kp.logger.Debug("delivery report handler shutting down")
			return
		case e := <-kp.deliveryChan:
			if m, ok := e.(*kafka.Message); ok {
				kp.recordDelivery(m)
			}
		}
	}
}

// recordDelivery updates the delivery metrics for one report and returns
// whether the broker acknowledged the message
func (kp *KafkaProducer) recordDelivery(m *kafka.Message) bool {
	if m.TopicPartition.Error != nil {
		kp.messagesFailed.Add(1)
		kp.logger.Warn("delivery failed",
			zap.ByteString("image_id", m.Key),
			zap.Error(m.TopicPartition.Error),
		)
		return false
	}

	acked := kp.messagesAcked.Add(1)
	if acked%1000 == 0 {
		kp.logger.Info("messages delivered",
			zap.Int64("acked", acked),
			zap.Int64("sent", kp.messagesSent.Load()),
			zap.Int32("partition", m.TopicPartition.Partition),
		)
	}
	return true
}

// NewEstimateMessage builds the Kafka message for one estimate. The image id
// is the key so every update of a site lands on the same partition.
func NewEstimateMessage(topic, runID string, e *models.DetectionEstimate) (*kafka.Message, error) {
	payload, err := e.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize estimate: %w", err)
	}

	region := ""
	if e.ParsedRegion != nil {
		region = string(*e.ParsedRegion)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(e.ImageID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderRunID, Value: []byte(runID)},
			{Key: HeaderCategory, Value: []byte(e.LandfillCategory)},
			{Key: HeaderRegion, Value: []byte(region)},
		},
	}, nil
}

// SendEstimate queues a single estimate with retry logic
func (kp *KafkaProducer) SendEstimate(runID string, e *models.DetectionEstimate) error {
	return kp.sendEstimate(runID, e, kp.deliveryChan)
}

func (kp *KafkaProducer) sendEstimate(runID string, e *models.DetectionEstimate, reports chan kafka.Event) error {
	message, err := NewEstimateMessage(kp.config.Topic, runID, e)
	if err != nil {
		return err
	}

	// Exponential backoff retry
	var lastErr error
	for attempt := 0; attempt <= kp.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := kp.baseBackoff * time.Duration(1<<uint(attempt-1))
			kp.logger.Debug("retrying produce",
				zap.String("image_id", e.ImageID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}

		err := kp.producer.Produce(message, reports)
		if err == nil {
			kp.messagesSent.Add(1)
			return nil
		}

		lastErr = err

		if kafkaErr, ok := err.(kafka.Error); ok {
			if !kafkaErr.IsRetriable() {
				kp.produceErrors.Add(1)
				return fmt.Errorf("non-retriable error: %w", err)
			}
		}
	}

	kp.produceErrors.Add(1)
	return fmt.Errorf("failed after %d retries: %w", kp.maxRetries, lastErr)
}

// SendEstimateBatch queues estimates concurrently and returns how many were
// queued
func (kp *KafkaProducer) SendEstimateBatch(ctx context.Context, runID string, estimates []models.DetectionEstimate, workerCount int) (int, error) {
	return kp.sendBatch(ctx, runID, estimates, workerCount, kp.deliveryChan)
}

func (kp *KafkaProducer) sendBatch(ctx context.Context, runID string, estimates []models.DetectionEstimate, workerCount int, reports chan kafka.Event) (int, error) {
	if len(estimates) == 0 {
		return 0, nil
	}
	if workerCount < 1 {
		workerCount = 1
	}

	kp.logger.Info("sending batch",
		zap.Int("estimates", len(estimates)),
		zap.Int("workers", workerCount),
	)

	jobs := make(chan *models.DetectionEstimate, len(estimates))
	errors := make(chan error, len(estimates))
	var queued atomic.Int64

	var workerWg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)
		go func(workerID int) {
			defer workerWg.Done()
			for e := range jobs {
				if err := kp.sendEstimate(runID, e, reports); err != nil {
					errors <- fmt.Errorf("worker %d failed on %s: %w", workerID, e.ImageID, err)
					continue
				}
				queued.Add(1)
			}
		}(i)
	}

	for i := range estimates {
		if ctx.Err() != nil {
			break
		}
		jobs <- &estimates[i]
	}
	close(jobs)

	workerWg.Wait()
	close(errors)

	var errs []error
	for err := range errors {
		errs = append(errs, err)
	}

	n := int(queued.Load())
	if err := ctx.Err(); err != nil {
		return n, fmt.Errorf("batch send interrupted: %w", err)
	}
	if len(errs) > 0 {
		return n, fmt.Errorf("batch send completed with %d errors (first error: %w)", len(errs), errs[0])
	}

	kp.logger.Info("batch queued", zap.Int("messages", n))
	return n, nil
}

// Write implements Sink: it queues the batch and waits for its delivery
// reports. Only messages the broker acknowledged count as accepted.
func (kp *KafkaProducer) Write(ctx context.Context, runID string, estimates []models.DetectionEstimate) (int, error) {
	reports := make(chan kafka.Event, len(estimates))
	queued, sendErr := kp.sendBatch(ctx, runID, estimates, kp.config.Workers, reports)

	acked, failed, pending := kp.awaitDeliveries(reports, queued, kp.config.FlushTimeout)

	if sendErr != nil {
		return acked, sendErr
	}
	if failed > 0 {
		return acked, fmt.Errorf("%d of %d messages failed delivery", failed, queued)
	}
	if pending > 0 {
		return acked, fmt.Errorf("%d messages unconfirmed after %v", pending, kp.config.FlushTimeout)
	}
	return acked, nil
}

// awaitDeliveries reads up to n delivery reports from reports until timeout
// and returns how many were acknowledged, failed or never reported
func (kp *KafkaProducer) awaitDeliveries(reports <-chan kafka.Event, n int, timeout time.Duration) (acked, failed, pending int) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for acked+failed < n {
		select {
		case e := <-reports:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if kp.recordDelivery(m) {
				acked++
			} else {
				failed++
			}
		case <-timer.C:
			pending = n - acked - failed
			kp.logger.Warn("delivery reports still outstanding", zap.Int("pending", pending))
			return acked, failed, pending
		}
	}
	return acked, failed, 0
}

// Flush waits for pending messages and returns how many are still queued
func (kp *KafkaProducer) Flush(timeout time.Duration) int {
	kp.logger.Debug("flushing producer", zap.Duration("timeout", timeout))
	remaining := kp.producer.Flush(int(timeout.Milliseconds()))
	if remaining > 0 {
		kp.logger.Warn("messages still in queue after flush timeout", zap.Int("remaining", remaining))
	}
	return remaining
}

// GetMetrics returns current producer metrics
func (kp *KafkaProducer) GetMetrics() map[string]int64 {
	return map[string]int64{
		"messages_sent":    kp.messagesSent.Load(),
		"messages_acked":   kp.messagesAcked.Load(),
		"messages_failed":  kp.messagesFailed.Load(),
		"messages_pending": kp.messagesSent.Load() - kp.messagesAcked.Load() - kp.messagesFailed.Load(),
		"produce_errors":   kp.produceErrors.Load(),
	}
}

// LogMetrics logs current metrics
func (kp *KafkaProducer) LogMetrics() {
	m := kp.GetMetrics()
	kp.logger.Info("producer metrics",
		zap.Int64("sent", m["messages_sent"]),
		zap.Int64("acked", m["messages_acked"]),
		zap.Int64("failed", m["messages_failed"]),
		zap.Int64("pending", m["messages_pending"]),
		zap.Int64("produce_errors", m["produce_errors"]),
	)
}

// Close flushes outstanding messages and shuts the producer down
func (kp *KafkaProducer) Close() {
	kp.logger.Info("shutting down kafka producer")

	kp.Flush(kp.config.FlushTimeout)
	kp.cancel()
	kp.wg.Wait()
	kp.producer.Close()

	kp.LogMetrics()
}
