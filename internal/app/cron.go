package app

import (
	"context"
	"time"

	"github.com/healthmate/core/internal/modules/storage/backup"
	pkgcron "github.com/healthmate/core/internal/pkg/cron"
	pkgredis "github.com/healthmate/core/internal/pkg/redis"
	"github.com/healthmate/core/internal/pkg/taskqueue"
)

const staleTaskAge = 3 * 24 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs(rc *pkgredis.Client) {
	backupSvc := backup.NewService(a.db, a.cfg.Backup, a.logger.Named("backup"))
	a.sched.Register(pkgcron.Job{
		Name:        "database_backup",
		Description: "Export all tables to a ZIP archive",
		Interval:    24 * time.Hour,
		Fn:          backupSvc.Run,
	})

	tasks := taskqueue.NewService(rc)
	a.sched.Register(pkgcron.Job{
		Name:        "cleanup_tasks",
		Description: "Drop finished background tasks older than three days",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			before := time.Now().Add(-staleTaskAge).UnixMilli()
			return tasks.DeleteCompleted(ctx, before)
		},
	})
}
