package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/parley/job"
	mw "github.com/xraph/parley/middleware"
)

// callMetrics runs each call through MetricsWithMeter on a fresh manual
// reader and returns what was collected.
func callMetrics(t *testing.T, run func(m mw.Middleware)) metricdata.ResourceMetrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	run(mw.MetricsWithMeter(mp.Meter("test")))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

// executions returns the call counter's points keyed by their attribute set.
func executions(t *testing.T, rm metricdata.ResourceMetrics) map[attribute.Distinct]metricdata.DataPoint[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "parley.call.executions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("executions data = %T", m.Data)
			}
			out := make(map[attribute.Distinct]metricdata.DataPoint[int64], len(sum.DataPoints))
			for _, dp := range sum.DataPoints {
				out[dp.Attributes.Equivalent()] = dp
			}
			return out
		}
	}
	t.Fatal("parley.call.executions not recorded")
	return nil
}

func callAttrs(platform, method string, upload bool, status string) attribute.Set {
	return attribute.NewSet(
		attribute.String("platform", platform),
		attribute.String("method", method),
		attribute.Bool("upload", upload),
		attribute.String("status", status),
	)
}

func failing(context.Context) (job.Result, error) { return nil, errors.New("boom") }

func TestMetrics_Status(t *testing.T) {
	rm := callMetrics(t, func(m mw.Middleware) {
		_, _ = m(context.Background(), newTestCall(), ok)
		_, _ = m(context.Background(), newTestCall(), ok)
		_, _ = m(context.Background(), newTestCall(), failing)
	})
	points := executions(t, rm)

	for _, tc := range []struct {
		status string
		want   int64
	}{
		{"ok", 2},
		{"error", 1},
	} {
		attrs := callAttrs("telegram", "sendMessage", false, tc.status)
		dp, found := points[attrs.Equivalent()]
		if !found {
			t.Errorf("no point for status=%s", tc.status)
			continue
		}
		if dp.Value != tc.want {
			t.Errorf("status=%s calls = %d, want %d", tc.status, dp.Value, tc.want)
		}
	}
}

func TestMetrics_UploadsCountedApart(t *testing.T) {
	rm := callMetrics(t, func(m mw.Middleware) {
		send := newTestCall()
		_, _ = m(context.Background(), send, ok)

		upload := newTestCall()
		upload.Upload = true
		upload.Request = job.Request{Path: "media"}
		_, _ = m(context.Background(), upload, ok)
	})
	points := executions(t, rm)

	if len(points) != 2 {
		t.Fatalf("points = %d, want one for the message and one for the upload", len(points))
	}
	// A path-only request reports its path as the method.
	uploadAttrs := callAttrs("telegram", "media", true, "ok")
	if _, found := points[uploadAttrs.Equivalent()]; !found {
		t.Error("upload call not recorded under upload=true")
	}
}

func TestMetrics_SplitByPlatform(t *testing.T) {
	rm := callMetrics(t, func(m mw.Middleware) {
		for _, platform := range []string{"telegram", "whatsapp", "whatsapp"} {
			c := newTestCall()
			c.Platform = platform
			_, _ = m(context.Background(), c, ok)
		}
	})
	points := executions(t, rm)

	whatsappAttrs := callAttrs("whatsapp", "sendMessage", false, "ok")
	if dp := points[whatsappAttrs.Equivalent()]; dp.Value != 2 {
		t.Errorf("whatsapp calls = %d, want 2", dp.Value)
	}
	telegramAttrs := callAttrs("telegram", "sendMessage", false, "ok")
	if dp := points[telegramAttrs.Equivalent()]; dp.Value != 1 {
		t.Errorf("telegram calls = %d, want 1", dp.Value)
	}
}

func TestMetrics_DurationPerCall(t *testing.T) {
	rm := callMetrics(t, func(m mw.Middleware) {
		_, _ = m(context.Background(), newTestCall(), ok)
		_, _ = m(context.Background(), newTestCall(), ok)
	})

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "parley.call.duration" {
				continue
			}
			hist, isHist := m.Data.(metricdata.Histogram[float64])
			if !isHist || len(hist.DataPoints) != 1 {
				t.Fatalf("duration data = %+v", m.Data)
			}
			if hist.DataPoints[0].Count != 2 {
				t.Errorf("duration count = %d, want 2", hist.DataPoints[0].Count)
			}
			return
		}
	}
	t.Fatal("parley.call.duration not recorded")
}

func TestMetrics_GlobalProviderPassesThrough(t *testing.T) {
	res, err := mw.Metrics()(context.Background(), newTestCall(), ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got string
	if err := res.Decode(&got); err != nil || got != "ok" {
		t.Errorf("result = %q, %v", got, err)
	}
	if _, err := mw.Metrics()(context.Background(), newTestCall(), failing); err == nil {
		t.Error("error from the call should pass through")
	}
}
