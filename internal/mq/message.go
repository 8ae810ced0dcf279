package mq

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultQueue — очередь, в которую уходят задачи без явно указанной очереди.
const DefaultQueue = "default"

// TaskMessage — конверт задачи: {"task": <имя>, "params": {...}}.
type TaskMessage struct {
	// Task — имя задачи, по которому воркер выбирает обработчик.
	Task string `json:"task"`

	// Params — параметры задачи. Значения должны сериализоваться в JSON.
	Params map[string]any `json:"params"`
}

// NewTaskMessage создаёт конверт задачи.
func NewTaskMessage(task string, params map[string]any) TaskMessage {
	if params == nil {
		params = map[string]any{}
	}
	return TaskMessage{Task: task, Params: params}
}

// Encode сериализует конверт в JSON.
func (m TaskMessage) Encode() ([]byte, error) {
	if m.Task == "" {
		return nil, ErrEmptyTask
	}
	if m.Params == nil {
		m.Params = map[string]any{}
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal task %s: %w", m.Task, err)
	}
	return body, nil
}

// DecodeTaskMessage разбирает тело сообщения.
func DecodeTaskMessage(body []byte) (TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return TaskMessage{}, fmt.Errorf("unmarshal task message: %w", err)
	}
	if m.Task == "" {
		return TaskMessage{}, ErrEmptyTask
	}
	if m.Params == nil {
		m.Params = map[string]any{}
	}
	return m, nil
}

// PublishTask строит конверт {"task", "params"} и публикует его через Publish.
// Пустая очередь означает DefaultQueue.
func (p *TaskPublisher) PublishTask(ctx context.Context, queue, task string, params map[string]any) error {
	if queue == "" {
		queue = DefaultQueue
	}

	body, err := NewTaskMessage(task, params).Encode()
	if err != nil {
		return err
	}

	p.logger.Debug("publishing task", "task", task, "queue", queue)
	return p.publish(ctx, queue, body, "application/json")
}
