// Package scheduler публикует задачи по расписанию.
//
// Расписания читаются из JSON-файла (SCHEDULE_FILE):
//
//	[
//	  {"name": "nightly-report", "cron": "0 3 * * *", "timezone": "Europe/Moscow",
//	   "task": "http_request", "queue": "reports", "params": {"url": "http://reports/build"}},
//	  {"name": "heartbeat", "interval_sec": 60, "task": "delay", "params": {"duration_sec": 0}}
//	]
//
// Структура:
//   - scheduler.go — Scheduler (Run, Fire) поверх robfig/cron
//   - cron.go      — Schedule, парсинг и проверка расписаний
//
// Использование:
//
//	schedules, err := scheduler.LoadSchedules(cfg.ScheduleFile)
//	if err != nil {
//	    return err
//	}
//
//	sched := scheduler.New(scheduler.Config{
//	    Publisher: publisher,
//	    Schedules: schedules,
//	    Logger:    logger,
//	})
//
//	// Блокируется до отмены ctx
//	return sched.Run(ctx)
//
// Ошибка публикации одного срабатывания логируется и не останавливает
// планировщик. Несколько экземпляров планировщика опубликуют задачу
// несколько раз: запускайте один.
package scheduler
