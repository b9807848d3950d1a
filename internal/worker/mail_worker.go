package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/metrics"
	"assetbook/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrQueueFull is returned when neither redis nor the local buffer accepts a message.
var ErrQueueFull = errors.New("mail queue is full")

// mailTask is the unit persisted in the redis list.
type mailTask struct {
	Email    models.Email `json:"email"`
	Attempt  int          `json:"attempt"`
	QueuedAt time.Time    `json:"queued_at"`
	LastErr  string       `json:"last_error,omitempty"`
}

// MailWorker delivers queued emails with retries.
type MailWorker struct {
	mailer        domain.Mailer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan mailTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	sleep         func(ctx context.Context, d time.Duration) bool
	logger        *zerolog.Logger
}

// NewMailWorker builds a worker with sane defaults. redisClient may be nil.
func NewMailWorker(mailer domain.Mailer, redisClient *redis.Client, queueSize int, retry RetryPolicy, logger *zerolog.Logger) *MailWorker {
	retry = retry.withDefaults()
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &MailWorker{
		mailer:        mailer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan mailTask, queueSize),
		redisQueueKey: "mail:queue",
		deadLetterKey: "mail:deadletter",
		pollInterval:  2 * time.Second,
		sleep:         sleepCtx,
		logger:        logger,
	}
}

// Enqueue schedules msg for delivery via redis or the in-memory queue.
func (w *MailWorker) Enqueue(msg models.Email) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}

	task := mailTask{Email: msg, QueuedAt: time.Now().UTC()}

	if w.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := w.pushRedis(ctx, w.redisQueueKey, task)
		cancel()
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("mail_worker: redis push failed, fallback to memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the main loop; stops when ctx is done.
func (w *MailWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("mail_worker: started")
	defer w.logger.Info().Msg("mail_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case t := <-w.queue:
				w.processTask(ctx, &t)
			}
			continue
		}

		if !w.sleep(ctx, w.pollInterval) {
			return
		}
	}
}

func (w *MailWorker) tryLocalQueue() (mailTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return mailTask{}, false
	}
}

func (w *MailWorker) tryRedis(ctx context.Context) (mailTask, bool) {
	if w.redis == nil {
		return mailTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return mailTask{}, false
		}
		w.logger.Error().Err(err).Msg("mail_worker: redis BRPOP error")
		return mailTask{}, false
	}
	if len(res) != 2 {
		return mailTask{}, false
	}
	var task mailTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("mail_worker: decode redis task")
		return mailTask{}, false
	}
	return task, true
}

// processTask tries to deliver, backing off between attempts, until the
// policy is exhausted or ctx is cancelled.
func (w *MailWorker) processTask(ctx context.Context, task *mailTask) {
	for {
		err := w.mailer.Send(ctx, task.Email)
		if err == nil {
			metrics.IncMail("sent")
			w.logger.Debug().Str("to", task.Email.To).Str("subject", task.Email.Subject).Msg("mail_worker: delivered")
			return
		}

		task.Attempt++
		task.LastErr = err.Error()
		if w.retryPolicy.Exhausted(task.Attempt) {
			metrics.IncMail("failed")
			w.logger.Error().Err(err).Str("to", task.Email.To).Int("attempts", task.Attempt).Msg("mail_worker: giving up")
			w.pushDeadLetter(ctx, task)
			return
		}

		metrics.IncMail("retry")
		delay := w.retryPolicy.NextDelay(task.Attempt)
		w.logger.Warn().Err(err).Str("to", task.Email.To).Dur("retry_in", delay).Msg("mail_worker: send failed")
		if !w.sleep(ctx, delay) {
			w.pushDeadLetter(context.Background(), task)
			return
		}
	}
}

func (w *MailWorker) pushRedis(ctx context.Context, key string, task mailTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode mail task: %w", err)
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *MailWorker) pushDeadLetter(ctx context.Context, task *mailTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Msg("mail_worker: deadletter push")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
