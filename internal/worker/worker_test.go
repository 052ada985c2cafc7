package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"tourbook/internal/config"
	"tourbook/internal/database"
	"tourbook/internal/models"
	"tourbook/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      []string
	subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:             "b-1",
		TourID:         "T1",
		TourName:       "Alps",
		FullName:       "Jane Doe",
		Email:          "jane@example.com",
		TravelDate:     "2030-06-01",
		NumberOfPeople: 1,
		Status:         models.StatusPending,
	}
}

type taskRow struct {
	status     string
	retryCount int
	lastError  *string
	nextRetry  *time.Time
}

func loadTask(t *testing.T, db *database.DB, id int64) taskRow {
	t.Helper()
	var row taskRow
	err := db.QueryRow(`SELECT status, retry_count, last_error, next_retry_at FROM notification_queue WHERE id = ?`, id).
		Scan(&row.status, &row.retryCount, &row.lastError, &row.nextRetry)
	require.NoError(t, err)
	return row
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{}, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, models.NotificationBookingConfirmation, testBooking()))

	task, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	w.processTask(ctx, &task)

	row := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusCompleted, row.status)
	assert.Zero(t, row.retryCount)
	assert.Nil(t, row.nextRetry)
	require.Equal(t, 1, mailer.count())
	assert.Equal(t, []string{"jane@example.com"}, mailer.sent[0].to)

	// Processing a completed task again is a no-op.
	w.processTask(ctx, &task)
	assert.Equal(t, 1, mailer.count())
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp unavailable")}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, models.NotificationStatusUpdate, testBooking()))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	row := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusRetry, row.status)
	assert.Equal(t, 1, row.retryCount)
	require.NotNil(t, row.nextRetry)
	assert.True(t, row.nextRetry.After(time.Now()))
	require.NotNil(t, row.lastError)
	assert.Contains(t, *row.lastError, "smtp unavailable")
}

func TestProcessTaskFailsAfterMaxRetries(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp unavailable")}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond}, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, models.NotificationStatusUpdate, testBooking()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	assert.Equal(t, models.TaskStatusRetry, loadTask(t, db, task.ID).status)

	time.Sleep(5 * time.Millisecond)
	tasks, err := db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	w.processTask(ctx, &tasks[0])

	row := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, row.status)
	assert.Zero(t, mailer.count())
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	w := NewNotificationWorker(db, &fakeMailer{}, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	task := &models.NotificationTask{Kind: models.NotificationStatusUpdate, BookingID: "b-1", Payload: "{not json"}
	require.NoError(t, db.CreateNotificationTask(ctx, task))

	w.processTask(ctx, task)
	assert.Equal(t, models.TaskStatusFailed, loadTask(t, db, task.ID).status)
}

func TestAdminNotificationWithoutAddressFails(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.NotificationAdminNewBooking, testBooking()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	assert.Equal(t, models.TaskStatusFailed, loadTask(t, db, task.ID).status)
	assert.Zero(t, mailer.count())
}

func TestProcessTaskInvalidRecipientFailsWithoutRetry(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: fmt.Errorf("%w: bad address", notify.ErrInvalidRecipient)}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{MaxRetries: 5, InitialDelay: time.Second}, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.NotificationBookingConfirmation, testBooking()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	row := loadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, row.status)
	assert.Zero(t, row.retryCount)
	assert.Nil(t, row.nextRetry)
}

func TestEnqueueValidation(t *testing.T) {
	db := newTestDB(t)
	w := NewNotificationWorker(db, &fakeMailer{}, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	assert.Error(t, w.Enqueue(ctx, "", testBooking()))
	assert.Error(t, w.Enqueue(ctx, models.NotificationStatusUpdate, nil))
	assert.Error(t, w.Enqueue(ctx, models.NotificationStatusUpdate, &models.Booking{}))
}

func TestRedisQueueAndDeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("rejected")}
	w := NewNotificationWorker(db, mailer, client, RetryPolicy{MaxRetries: 1}, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, models.NotificationBookingConfirmation, testBooking()))
	_, local := w.tryLocalQueue()
	assert.False(t, local, "redis path should be used when available")

	require.True(t, w.RunOnce(ctx))

	dead, err := client.LRange(ctx, deadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)

	var task models.NotificationTask
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &task))
	assert.Equal(t, "b-1", task.BookingID)
	assert.Equal(t, models.TaskStatusFailed, loadTask(t, db, task.ID).status)
}

func TestStartDeliversAndStops(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := NewNotificationWorker(db, mailer, nil, RetryPolicy{}, Options{PollInterval: 10 * time.Millisecond, AdminAddress: "ops@example.com"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, w.Enqueue(context.Background(), models.NotificationBookingConfirmation, testBooking()))
	require.NoError(t, w.Enqueue(context.Background(), models.NotificationAdminNewBooking, testBooking()))

	assert.Eventually(t, func() bool { return mailer.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(config.WorkerConfig{MaxRetries: 4, InitialDelaySeconds: 3, MaxDelaySeconds: 30})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 3*time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 30*time.Second, p.NextDelay(10))
}
