package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tourbook/internal/domain"
	"tourbook/internal/metrics"
	"tourbook/internal/models"
	"tourbook/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "notifications:queue"
	deadLetterKey = "notifications:deadletter"
)

// Options tunes the polling loop.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	AdminAddress string
}

// NotificationWorker delivers queued notifications. Tasks are persisted in
// the notification_queue table first and then handed over through Redis or
// an in-memory channel; the table is polled for retries and anything the
// fast path missed.
type NotificationWorker struct {
	repo         domain.NotificationQueueRepository
	mailer       domain.Mailer
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.NotificationTask
	pollInterval time.Duration
	batchSize    int
	adminAddress string
	logger       *zerolog.Logger
}

func NewNotificationWorker(
	repo domain.NotificationQueueRepository,
	mailer domain.Mailer,
	redisClient *redis.Client,
	retry RetryPolicy,
	opts Options,
	logger *zerolog.Logger,
) *NotificationWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		repo:         repo,
		mailer:       mailer,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.NotificationTask, models.NotificationQueueSize),
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		adminAddress: opts.AdminAddress,
		logger:       logger,
	}
}

// Enqueue persists a notification about booking and schedules it for delivery.
func (w *NotificationWorker) Enqueue(ctx context.Context, kind string, booking *models.Booking) error {
	if kind == "" {
		return errors.New("notification kind is required")
	}
	if booking == nil || booking.ID == "" {
		return errors.New("booking id is required")
	}

	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		Kind:      kind,
		BookingID: booking.ID,
		Payload:   string(payload),
		Status:    models.TaskStatusPending,
	}
	if err := w.repo.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, redisQueueKey, &task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, using in-memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Notification worker started")
	defer w.logger.Info().Msg("Notification worker stopped")

	if n, err := w.repo.ResetStaleNotificationTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Failed to reset stale notification tasks")
	} else if n > 0 {
		w.logger.Info().Int64("count", n).Msg("Requeued notification tasks left in processing")
	}

	for ctx.Err() == nil {
		if !w.RunOnce(ctx) {
			select {
			case <-ctx.Done():
				return
			case t := <-w.queue:
				w.processTask(ctx, &t)
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// RunOnce processes whatever is immediately available and reports whether
// any task was handled.
func (w *NotificationWorker) RunOnce(ctx context.Context) bool {
	if t, ok := w.tryLocalQueue(); ok {
		w.processTask(ctx, &t)
		return true
	}

	if t, ok := w.tryRedis(ctx); ok {
		w.processTask(ctx, &t)
		return true
	}

	tasks, err := w.repo.GetPendingNotificationTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending notification tasks")
		}
		return false
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks) > 0
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.RPop(ctx, redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("Redis RPOP failed")
		}
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode task from Redis")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	claimed, err := w.repo.ClaimNotificationTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to claim notification task")
		return
	}
	if !claimed {
		return
	}

	var booking models.Booking
	if err := json.Unmarshal([]byte(task.Payload), &booking); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	msg, err := notify.Compose(task.Kind, &booking, w.adminAddress)
	if err != nil {
		w.failTask(ctx, task, err)
		return
	}

	if err := w.mailer.Send(ctx, msg.To, msg.Subject, msg.HTML); err != nil {
		if isPermanent(err) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.Kind, "sent")
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification completed")
	}
}

// isPermanent reports delivery errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, notify.ErrNoRecipient) || errors.Is(err, notify.ErrInvalidRecipient)
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	metrics.IncNotification(task.Kind, "retry")
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).
		Msg("Notification delivery failed, will retry")
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification for retry")
	}
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	metrics.IncNotification(task.Kind, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("kind", task.Kind).Str("booking_id", task.BookingID).
		Msg("Notification delivery failed permanently")
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, deadLetterKey, task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push failed")
		}
	}
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, task *models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
