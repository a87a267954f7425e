package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func respond(status int) (*http.Response, error) {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

type deliverFunc func(ctx context.Context, n Notice) error

func (f deliverFunc) Deliver(ctx context.Context, n Notice) error { return f(ctx, n) }

var notice = Notice{
	WorkOrderID:  42,
	Reference:    "WO-2024-00042",
	Title:        "Chiller inspection",
	Level:        1,
	Kind:         model.EscalationResponseBreach,
	Reason:       "response deadline passed",
	RecipientIDs: []int64{7, 9},
	DeliveryKey:  "5f0c7c36-5a6e-4f7e-9d7a-3b1d2c1f0a01",
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, 1, LogDeliverer{})

	assert.True(t, wp.Dispatch(notice))
	assert.False(t, wp.Dispatch(notice), "a full queue drops the notice")

	select {
	case got := <-wp.Jobs():
		assert.Equal(t, notice.DeliveryKey, got.DeliveryKey)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_Delivers(t *testing.T) {
	got := make(chan Notice, 2)
	wp := NewWorkerPool(2, 4, deliverFunc(func(_ context.Context, n Notice) error {
		got <- n
		if n.Level > 1 {
			return errors.New("push service down")
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	second := notice
	second.Level = 2
	require.True(t, wp.Dispatch(notice))
	require.True(t, wp.Dispatch(second))

	levels := map[int]bool{}
	for i := 0; i < 2; i++ {
		select {
		case n := <-got:
			levels[n.Level] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, levels)
}

func TestWorkerPool_DrainDeliversQueued(t *testing.T) {
	var delivered atomic.Int32
	wp := NewWorkerPool(1, 8, deliverFunc(func(_ context.Context, _ Notice) error {
		delivered.Add(1)
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.True(t, wp.Dispatch(notice))
	}

	wp.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wp.Drain(ctx))
	assert.Equal(t, int32(5), delivered.Load())
}

func TestWorkerPool_DispatchAfterDrainIsDropped(t *testing.T) {
	wp := NewWorkerPool(1, 4, deliverFunc(func(_ context.Context, _ Notice) error { return nil }))
	wp.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wp.Drain(ctx))

	// A request that outlived the server shutdown may still escalate.
	assert.NotPanics(t, func() {
		assert.False(t, wp.Dispatch(notice))
	})
	assert.NoError(t, wp.Drain(ctx), "draining twice is harmless")
}

func TestPushDeliverer(t *testing.T) {
	gormDB, mock := newTestDB(t)
	d := NewPushDeliverer(store.NewGormStore(gormDB), &webpush.Options{TTL: 60})

	subscriptionsQuery := `SELECT \* FROM "push_subscriptions" WHERE user_id IN \(\$1,\$2\)`
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
			AddRow("https://push.example.com/a", 7, "p256dh-a", "auth-a", time.Now()).
			AddRow("https://push.example.com/gone", 9, "p256dh-b", "auth-b", time.Now())
	}

	t.Run("sends to each subscription and removes expired ones", func(t *testing.T) {
		var sentTo []string
		d.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				sentTo = append(sentTo, sub.Endpoint)
				var body map[string]any
				require.NoError(t, json.Unmarshal(payload, &body))
				assert.Equal(t, "WO-2024-00042 escalated to level 1: response deadline passed", body["message"])
				assert.Equal(t, "response_breach", body["kind"])
				if sub.Endpoint == "https://push.example.com/gone" {
					return respond(http.StatusGone)
				}
				return respond(http.StatusCreated)
			},
		}

		mock.ExpectQuery(subscriptionsQuery).WithArgs(int64(7), int64(9)).WillReturnRows(rows())
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://push.example.com/gone").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, d.Deliver(context.Background(), notice))
		assert.Equal(t, []string{"https://push.example.com/a", "https://push.example.com/gone"}, sentTo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips a delivery key it already sent", func(t *testing.T) {
		d.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				t.Fatal("notice delivered twice")
				return nil, nil
			},
		}
		require.NoError(t, d.Deliver(context.Background(), notice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports failure when nothing was accepted", func(t *testing.T) {
		d.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				return respond(http.StatusInternalServerError)
			},
		}
		other := notice
		other.DeliveryKey = "0d8e8a4e-1b53-4c31-a2a6-8f3f6f0e7b22"

		mock.ExpectQuery(subscriptionsQuery).WithArgs(int64(7), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://push.example.com/a", 7, "p256dh-a", "auth-a", time.Now()))

		err := d.Deliver(context.Background(), other)
		assert.EqualError(t, err, "notice for work order 42: all 1 push deliveries failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
