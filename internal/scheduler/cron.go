package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей и дескрипторы вроде @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ErrInvalidSchedule — расписание задано некорректно.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule — периодическая публикация задачи.
type Schedule struct {
	Name string `json:"name"`

	// Cron — cron-выражение. Взаимоисключающее с IntervalSec.
	Cron string `json:"cron,omitempty"`

	// IntervalSec — период в секундах.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — IANA-зона для Cron (default: UTC).
	Timezone string `json:"timezone,omitempty"`

	Task   string         `json:"task"`
	Queue  string         `json:"queue,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// IsCron возвращает true, если расписание задано cron-выражением.
func (s *Schedule) IsCron() bool {
	return s.Cron != ""
}

// Validate проверяет расписание.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if s.Task == "" {
		return fmt.Errorf("%w: %s: task is required", ErrInvalidSchedule, s.Name)
	}

	switch {
	case s.Cron != "" && s.IntervalSec > 0:
		return fmt.Errorf("%w: %s: cron and interval_sec are mutually exclusive", ErrInvalidSchedule, s.Name)
	case s.Cron != "":
		if err := ValidateCronExpr(s.Cron); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, s.Name, err)
		}
	case s.IntervalSec > 0:
	default:
		return fmt.Errorf("%w: %s: cron or interval_sec is required", ErrInvalidSchedule, s.Name)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: %s: timezone %q: %v", ErrInvalidSchedule, s.Name, s.Timezone, err)
		}
	}
	return nil
}

// Spec возвращает выражение для cron.Cron: с префиксом CRON_TZ для
// cron-расписаний и @every для интервальных.
func (s *Schedule) Spec() string {
	if !s.IsCron() {
		return fmt.Sprintf("@every %ds", s.IntervalSec)
	}
	if s.Timezone != "" {
		return "CRON_TZ=" + s.Timezone + " " + s.Cron
	}
	return s.Cron
}

// NextDue вычисляет следующее время выполнения после from.
// Результат в UTC.
func NextDue(s *Schedule, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(s.Spec())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", s.Spec(), err)
	}
	return sched.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// ParseSchedules разбирает JSON-массив расписаний и проверяет каждое.
// Имена должны быть уникальны.
func ParseSchedules(data []byte) ([]Schedule, error) {
	var schedules []Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("unmarshal schedules: %w", err)
	}

	seen := make(map[string]bool, len(schedules))
	for i := range schedules {
		if err := schedules[i].Validate(); err != nil {
			return nil, err
		}
		if seen[schedules[i].Name] {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidSchedule, schedules[i].Name)
		}
		seen[schedules[i].Name] = true
	}
	return schedules, nil
}

// LoadSchedules читает расписания из файла.
func LoadSchedules(path string) ([]Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	return ParseSchedules(data)
}
