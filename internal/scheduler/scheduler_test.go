package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/medblog/internal/scheduler"
	"github.com/okian/medblog/pkg/logger"
)

func TestScheduler(t *testing.T) {
	_ = logger.Init()

	Convey("Given a job", t, func() {
		var runs atomic.Int32
		job := func(context.Context) error {
			runs.Add(1)
			return nil
		}

		Convey("When the cron expression is invalid", func() {
			_, err := scheduler.New("refresh", "every tuesday-ish", job)
			So(errors.Is(err, scheduler.ErrInvalidSchedule), ShouldBeTrue)
		})

		Convey("When it is run directly", func() {
			s, err := scheduler.New("refresh", "@every 1h", job)
			So(err, ShouldBeNil)
			So(s.RunNow(context.Background()), ShouldBeNil)
			So(runs.Load(), ShouldEqual, 1)
		})

		Convey("When the job fails", func() {
			s, _ := scheduler.New("refresh", "@every 1h", func(context.Context) error { return errors.New("boom") })
			So(s.RunNow(context.Background()), ShouldNotBeNil)
		})

		Convey("When it is scheduled every second", func() {
			s, err := scheduler.New("refresh", "@every 1s", job)
			So(err, ShouldBeNil)
			s.Start(context.Background())
			s.Start(context.Background())

			deadline := time.Now().Add(3 * time.Second)
			for runs.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}

			Convey("Then it should run and stop cleanly", func() {
				So(runs.Load(), ShouldBeGreaterThanOrEqualTo, 1)
				stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				So(s.Stop(stopCtx), ShouldBeNil)
				So(s.Stop(stopCtx), ShouldBeNil)
			})
		})
	})
}
