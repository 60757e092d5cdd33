package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/runclub/internal/adapters/repository"
	app "github.com/okian/runclub/internal/app"
	"github.com/okian/runclub/internal/config"
	"github.com/okian/runclub/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithOutput(io.Discard))
	os.Exit(m.Run())
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service behind the mux", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.Timezone = "UTC"
		cfg.PushDriver = config.PushDriverNone
		svc := app.New(cfg, app.WithStore(repository.NewMemoryStore()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newMux(ctx, svc))
		defer srv.Close()

		convey.Convey("Then every public route answers", func() {
			for path, want := range map[string]int{
				"/healthz":      http.StatusOK,
				"/stats":        http.StatusOK,
				"/openapi.yaml": http.StatusOK,
				"/api-docs":     http.StatusOK,
				"/partners/x":   http.StatusBadRequest,
			} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, want)
			}
		})

		convey.Convey("Then manual triggers reach the scheduler", func() {
			resp, err := http.Post(srv.URL+"/jobs/nope", "application/json", http.NoBody)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the runtime metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		convey.Convey("Then the refresh loop ends with its context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	convey.Convey("Given an unknown push driver in the environment", t, func() {
		t.Setenv("RUNCLUB_PUSH_DRIVER", "carrier-pigeon")

		convey.Convey("Then run returns the config error", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
