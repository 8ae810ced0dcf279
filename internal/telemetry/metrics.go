package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики публикации и потребления задач.
var (
	// TasksPublished — успешно опубликованные сообщения по очередям.
	TasksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_published_total",
		Help: "Messages successfully published, by queue.",
	}, []string{"queue"})

	// PublishAttemptsFailed — неудачные попытки публикации (каждая попытка отдельно).
	PublishAttemptsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_publish_attempts_failed_total",
		Help: "Failed publish attempts, by queue.",
	}, []string{"queue"})

	// PublishGivenUp — публикации, для которых исчерпаны все попытки.
	PublishGivenUp = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_publish_given_up_total",
		Help: "Publishes that failed after exhausting retries, by queue.",
	}, []string{"queue"})

	// MessagesConsumed — обработанные доставки по очередям и исходу (ack/nack).
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_consumed_total",
		Help: "Deliveries handled by consumers, by queue and outcome.",
	}, []string{"queue", "outcome"})

	// Reconnects — переустановки долгоживущего соединения.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskqueue_reconnects_total",
		Help: "Times the long-lived broker connection was re-established.",
	})

	// TasksExecuted — выполненные воркером задачи по имени и статусу.
	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_tasks_executed_total",
		Help: "Tasks executed by the worker, by task name and status.",
	}, []string{"task", "status"})

	// ScheduledPublishes — публикации, инициированные планировщиком.
	ScheduledPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_scheduled_publishes_total",
		Help: "Publishes triggered by the scheduler, by schedule name and status.",
	}, []string{"schedule", "status"})

	// HTTPRequests — запросы к HTTP API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_http_requests_total",
		Help: "HTTP requests handled by the enqueue API, by route and status.",
	}, []string{"route", "status"})
)

// Исходы обработки доставки.
const (
	OutcomeAck     = "ack"
	OutcomeNack    = "nack"
	OutcomeRequeue = "requeue"
)
