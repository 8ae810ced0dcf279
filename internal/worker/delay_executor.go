package worker

import (
	"context"
	"time"
)

// DelayExecutor — executor задачи "delay".
//
// Ожидает указанное количество секунд. Поддерживает отмену через context.
//
// Params:
//   - duration_sec (number): длительность задержки в секундах (default: 1, 0 — без ожидания)
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, params map[string]any) (*ExecutionResult, error) {
	durationSec := 1.0
	if val, ok := params["duration_sec"]; ok {
		switch v := val.(type) {
		case float64:
			durationSec = v
		case int:
			durationSec = float64(v)
		}
	}
	if durationSec < 0 {
		durationSec = 0
	}

	t := time.NewTimer(time.Duration(durationSec * float64(time.Second)))
	defer t.Stop()

	select {
	case <-t.C:
		return &ExecutionResult{
			Outputs: map[string]any{"delayed_sec": durationSec},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
