package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/medblog/internal/adapters/mq/queue"
	worker "github.com/okian/medblog/internal/adapters/mq/worker"
	logging "github.com/okian/medblog/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockRecorder struct {
	mu     sync.Mutex
	views  map[string]int64
	errors map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{views: make(map[string]int64), errors: make(map[string]error)}
}

func (m *mockRecorder) IncrementViews(_ context.Context, id string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[id]; ok {
		return err
	}
	m.views[id] += delta
	return nil
}

func (m *mockRecorder) get(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[id]
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"))

		convey.Convey("When views are queued and the queue is closed", func() {
			ctx := context.Background()
			q.Enqueue(ctx, queue.Event{ArticleID: "a1", ViewerID: "v1"})
			q.Enqueue(ctx, queue.Event{ArticleID: "a1", ViewerID: "v2"})
			q.Enqueue(ctx, queue.Event{ArticleID: "a2", ViewerID: "v1"})
			_ = q.Close()

			go w.Run(ctx)
			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			convey.Convey("Then every buffered view should be applied before it stops", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(rec.get("a1"), convey.ShouldEqual, 2)
				convey.So(rec.get("a2"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker should stop", func() {
				waitCtx, done := context.WithTimeout(context.Background(), time.Second)
				defer done()
				convey.So(w.Shutdown(waitCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the worker never started", func() {
			waitCtx, done := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer done()

			convey.Convey("Then shutdown should time out", func() {
				convey.So(w.Shutdown(waitCtx), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of three workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := newMockRecorder()
		rec.errors["broken"] = errors.New("store down")
		p := worker.NewPool(3, q, rec)
		ctx := context.Background()
		p.Start(ctx)

		convey.So(p.Size(), convey.ShouldEqual, 3)

		convey.Convey("When views are queued and the pool shuts down", func() {
			for i := 0; i < 50; i++ {
				q.Enqueue(ctx, queue.Event{ArticleID: "a1"})
			}
			q.Enqueue(ctx, queue.Event{ArticleID: "broken"})
			err := p.Shutdown(ctx)

			convey.Convey("Then every view should be accounted for", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(rec.get("a1"), convey.ShouldEqual, 50)
				processed, failed := p.Stats()
				convey.So(processed, convey.ShouldEqual, 50)
				convey.So(failed, convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		q := queue.NewInMemoryQueue()
		p := worker.NewPool(0, q, newMockRecorder())

		convey.Convey("Then it should size itself from the CPU count", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			_ = q.Close()
		})
	})
}
