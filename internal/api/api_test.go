package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

type fakePublisher struct {
	queue    string
	task     string
	params   map[string]any
	declared []string
	err      error
}

func (p *fakePublisher) PublishTask(_ context.Context, queue, task string, params map[string]any) error {
	if p.err != nil {
		return p.err
	}
	if task == "" {
		return mq.ErrEmptyTask
	}
	p.queue, p.task, p.params = queue, task, params
	return nil
}

func (p *fakePublisher) QueueDeclare(_ context.Context, queue string) error {
	if p.err != nil {
		return p.err
	}
	p.declared = append(p.declared, queue)
	return nil
}

func newTestServer(p Publisher) *httptest.Server {
	h := NewHandler(Config{
		Publisher: p,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return httptest.NewServer(h.Routes())
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return er.Error
}

func TestCreateTask_Accepted(t *testing.T) {
	p := &fakePublisher{}
	srv := newTestServer(p)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json",
		strings.NewReader(`{"task":"send_email","params":{"to":"a@example.com"},"queue":"emails"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if p.queue != "emails" || p.task != "send_email" || p.params["to"] != "a@example.com" {
		t.Errorf("unexpected publish: %s %s %v", p.queue, p.task, p.params)
	}

	var body struct {
		Data TaskAcceptedResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Queue != "emails" || body.Data.Task != "send_email" {
		t.Errorf("unexpected response: %+v", body.Data)
	}
}

func TestCreateTask_DefaultQueue(t *testing.T) {
	p := &fakePublisher{}
	srv := newTestServer(p)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"task":"cleanup"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if p.queue != mq.DefaultQueue {
		t.Errorf("expected default queue, got %s", p.queue)
	}
}

func TestCreateTask_BadRequest(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	for _, body := range []string{`not json`, `{"params":{}}`, `{"task":""}`} {
		resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
		if detail := decodeError(t, resp); detail.Code != ErrCodeBadRequest {
			t.Errorf("%s: unexpected code %s", body, detail.Code)
		}
		resp.Body.Close()
	}
}

func TestCreateTask_BrokerUnavailable(t *testing.T) {
	p := &fakePublisher{err: fmt.Errorf("publish to default: %w", errors.New("connection refused"))}
	srv := newTestServer(p)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"task":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, resp); detail.Code != ErrCodeBrokerFailure {
		t.Errorf("unexpected code %s", detail.Code)
	}
}

func TestDeclareQueue(t *testing.T) {
	p := &fakePublisher{}
	srv := newTestServer(p)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/queues/reports", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(p.declared) != 1 || p.declared[0] != "reports" {
		t.Errorf("unexpected declares: %v", p.declared)
	}
}

func TestRoutes_NotFoundAndMethod(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(&fakePublisher{})
	defer srv.Close()

	before := testutil.ToFloat64(telemetry.HTTPRequests.WithLabelValues("/healthz", "200"))

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if got := testutil.ToFloat64(telemetry.HTTPRequests.WithLabelValues("/healthz", "200")) - before; got != 1 {
		t.Errorf("expected request counter +1, got %v", got)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "taskqueue_http_requests_total") {
		t.Error("metrics should expose request counter")
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
