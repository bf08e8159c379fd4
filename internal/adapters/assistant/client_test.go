package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/medblog/internal/adapters/assistant"
	"github.com/okian/medblog/pkg/logger"
)

func TestClientAsk(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given an upstream assistant", t, func() {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			switch {
			case strings.Contains(got["message"].(string), "fail"):
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"model overloaded"}`))
			case strings.Contains(got["message"].(string), "legacy"):
				_, _ = w.Write([]byte(`{"response":"legacy shape"}`))
			case strings.Contains(got["message"].(string), "garbage"):
				_, _ = w.Write([]byte(`<html>`))
			case strings.Contains(got["message"].(string), "slow"):
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"reply":"late"}`))
			default:
				_, _ = w.Write([]byte(`{"reply":"Drink water and rest."}`))
			}
		}))
		Reset(srv.Close)
		c := assistant.NewClient(srv.URL)

		Convey("When asking a question with history", func() {
			reply, err := c.Ask(ctx, "  I have a headache ", []assistant.Message{{Role: "user", Content: "hi"}})

			Convey("Then the reply should be returned and the request forwarded", func() {
				So(err, ShouldBeNil)
				So(reply, ShouldEqual, "Drink water and rest.")
				So(got["message"], ShouldEqual, "I have a headache")
				So(len(got["history"].([]any)), ShouldEqual, 1)
			})
		})

		Convey("When the history is long", func() {
			history := make([]assistant.Message, 30)
			for i := range history {
				history[i] = assistant.Message{Role: "user", Content: "x"}
			}
			_, err := c.Ask(ctx, "hello", history)
			So(err, ShouldBeNil)
			So(len(got["history"].([]any)), ShouldEqual, 20)
		})

		Convey("When the upstream uses the response field", func() {
			reply, err := c.Ask(ctx, "legacy please", nil)
			So(err, ShouldBeNil)
			So(reply, ShouldEqual, "legacy shape")
		})

		Convey("When the upstream fails", func() {
			_, err := c.Ask(ctx, "please fail", nil)
			So(errors.Is(err, assistant.ErrUpstream), ShouldBeTrue)
		})

		Convey("When the upstream returns garbage", func() {
			_, err := c.Ask(ctx, "garbage", nil)
			So(errors.Is(err, assistant.ErrUpstream), ShouldBeTrue)
		})

		Convey("When the upstream is slower than the timeout", func() {
			sc := assistant.NewClient(srv.URL, assistant.WithTimeout(20*time.Millisecond))
			_, err := sc.Ask(ctx, "slow", nil)
			So(errors.Is(err, assistant.ErrUpstream), ShouldBeTrue)
		})

		Convey("When the message is blank or too long", func() {
			_, err := c.Ask(ctx, "   ", nil)
			So(errors.Is(err, assistant.ErrInvalidInput), ShouldBeTrue)
			_, err = c.Ask(ctx, strings.Repeat("a", 4001), nil)
			So(errors.Is(err, assistant.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a client without an endpoint", t, func() {
		c := assistant.NewClient("")

		Convey("Then it should be disabled", func() {
			So(c.Enabled(), ShouldBeFalse)
			_, err := c.Ask(ctx, "hello", nil)
			So(errors.Is(err, assistant.ErrDisabled), ShouldBeTrue)
		})
	})
}
