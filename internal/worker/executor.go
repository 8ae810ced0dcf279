package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Executor — интерфейс для выполнения задачи конкретного типа.
//
// Реализации: HTTPExecutor, DelayExecutor.
//
// params — параметры из конверта {"task", "params"}, уже прошедшие
// проверку по схеме, если она зарегистрирована.
type Executor interface {
	Execute(ctx context.Context, params map[string]any) (*ExecutionResult, error)
}

// ExecutorFunc позволяет использовать обычную функцию как Executor.
type ExecutorFunc func(ctx context.Context, params map[string]any) (*ExecutionResult, error)

// Execute вызывает f.
func (f ExecutorFunc) Execute(ctx context.Context, params map[string]any) (*ExecutionResult, error) {
	return f(ctx, params)
}

// ExecutionResult — результат выполнения задачи.
type ExecutionResult struct {
	// Outputs — выходные данные выполнения (попадают в лог).
	Outputs map[string]any

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

type registration struct {
	executor Executor
	params   *jsonschema.Schema
}

// Registry — реестр executor'ов по имени задачи.
type Registry struct {
	entries map[string]registration
}

// NewRegistry создаёт реестр с executor'ами по умолчанию:
// http_request и delay.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]registration)}
	r.mustRegister(TaskHTTPRequest, &HTTPExecutor{}, httpRequestParamsSchema)
	r.mustRegister(TaskDelay, &DelayExecutor{}, delayParamsSchema)
	return r
}

// Register добавляет executor для задачи без проверки параметров.
func (r *Registry) Register(task string, executor Executor) {
	r.entries[task] = registration{executor: executor}
}

// RegisterWithSchema добавляет executor и JSON Schema для его параметров.
func (r *Registry) RegisterWithSchema(task string, executor Executor, paramsSchema string) error {
	schema, err := compileSchema("mem://params/"+task+".json", paramsSchema)
	if err != nil {
		return fmt.Errorf("params schema for %s: %w", task, err)
	}
	r.entries[task] = registration{executor: executor, params: schema}
	return nil
}

func (r *Registry) mustRegister(task string, executor Executor, paramsSchema string) {
	if err := r.RegisterWithSchema(task, executor, paramsSchema); err != nil {
		panic(err)
	}
}

// Get возвращает executor для задачи.
func (r *Registry) Get(task string) (Executor, error) {
	e, ok := r.entries[task]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	return e.executor, nil
}

// ValidateParams проверяет параметры по схеме задачи, если она есть.
func (r *Registry) ValidateParams(task string, params map[string]any) error {
	e, ok := r.entries[task]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	if e.params == nil {
		return nil
	}

	// схема работает с результатом json.Unmarshal, приводим params к нему
	v, err := toJSONValue(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := e.params.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Tasks возвращает отсортированный список зарегистрированных задач.
func (r *Registry) Tasks() []string {
	tasks := make([]string, 0, len(r.entries))
	for name := range r.entries {
		tasks = append(tasks, name)
	}
	sort.Strings(tasks)
	return tasks
}
