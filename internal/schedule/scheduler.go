package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs maintenance jobs on five field cron specs. A job never
// overlaps with its own previous run.
type CronScheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
	ctx  atomic.Pointer[context.Context]
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]cron.EntryID),
	}
}

// AddJob registers job under spec. An empty spec leaves the job disabled.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", job.Name()), zap.String("spec", spec))
	if spec == "" {
		logger.Info("job disabled")
		return nil
	}
	if _, ok := c.jobs[job.Name()]; ok {
		return fmt.Errorf("job %s already scheduled", job.Name())
	}
	id, err := c.cron.AddFunc(spec, c.guard(job))
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}
	c.jobs[job.Name()] = id
	logger.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx.Store(&ctx)
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) guard(job Job) func() {
	var running atomic.Bool
	return func() {
		ctx := context.Background()
		if p := c.ctx.Load(); p != nil {
			ctx = *p
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped, previous run still active")
			return
		}
		defer running.Store(false)
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		logger.Info("job done", zap.Duration("duration", time.Since(start)))
	}
}
