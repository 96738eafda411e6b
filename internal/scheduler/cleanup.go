package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage"
	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

// CleanupJob удаляет записи старше заданного числа дней
type CleanupJob struct {
	repo      storage.AppointmentRepository
	clock     calendar.Clock
	keepDays  int
	timeout   time.Duration
	logger    *logger.Logger
	cron      *cron.Cron
	scheduled bool
}

// NewCleanupJob создает задачу очистки
func NewCleanupJob(repo storage.AppointmentRepository, clock calendar.Clock, keepDays int, log *logger.Logger) *CleanupJob {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CleanupJob{
		repo:     repo,
		clock:    clock,
		keepDays: keepDays,
		timeout:  time.Minute,
		logger:   log,
		cron:     cron.New(),
	}
}

// Cutoff возвращает первую дату, которая сохраняется
func (j *CleanupJob) Cutoff() calendar.CalendarDate {
	return calendar.Canonicalize(j.clock.Now().AddDate(0, 0, -j.keepDays))
}

// Run выполняет очистку один раз
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.Cutoff()
	j.logger.Info("Cleanup job: deleting appointments before cutoff", logger.String("cutoff", string(cutoff)))

	n, err := j.repo.DeleteAppointmentsBefore(ctx, cutoff)
	if err != nil {
		metrics.RecordError("scheduler", "cleanup_failed")
		return 0, fmt.Errorf("cleanup job: failed to delete appointments before %s: %w", cutoff, err)
	}

	metrics.AppointmentsPurged.Add(float64(n))
	j.logger.Info("Cleanup job: finished", logger.Int64("deleted", n))
	return n, nil
}

// Start регистрирует задачу по cron-выражению и запускает cron
func (j *CleanupJob) Start(spec string) error {
	if !j.scheduled {
		_, err := j.cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
			defer cancel()
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("Cleanup job failed", logger.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
		}
		j.scheduled = true
	}

	j.cron.Start()
	return nil
}

// Stop останавливает cron и ждет завершения текущего запуска
func (j *CleanupJob) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
