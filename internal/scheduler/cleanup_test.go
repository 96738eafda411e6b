package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/internal/storage/sqlite"
	"github.com/region23/barbershop/pkg/logger"
)

func TestCleanupJob_Run(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, date := range []calendar.CalendarDate{"2024-02-01", "2024-02-08", "2024-02-09", "2024-03-10"} {
		require.NoError(t, store.CreateAppointment(ctx, &models.Appointment{
			Date: date, Time: "09:00", CustomerName: "João", CustomerPhone: "(82) 98712-6184",
		}))
	}

	clock := calendar.FixedClock(time.Date(2024, 3, 10, 3, 0, 0, 0, time.Local))
	job := NewCleanupJob(store, clock, 30, logger.Nop())

	assert.Equal(t, calendar.CalendarDate("2024-02-09"), job.Cutoff())

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := store.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, calendar.CalendarDate("2024-02-09"), list[0].Date)
}

func TestCleanupJob_StartRejectsBadSpec(t *testing.T) {
	job := NewCleanupJob(nil, nil, 30, nil)

	err := job.Start("not a cron")
	assert.Error(t, err)
}

func TestCleanupJob_StartStop(t *testing.T) {
	job := NewCleanupJob(nil, nil, 30, nil)

	require.NoError(t, job.Start("0 3 * * *"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, job.Stop(ctx))
}
