package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the unit of scheduled work. Errors are logged, never retried.
type Job func(ctx context.Context) error

// Scheduler runs recurring cron jobs and one-shot jobs at absolute times.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	mu   sync.Mutex
	once map[string]cron.EntryID
}

// New creates a scheduler evaluating cron specs in loc (UTC when nil).
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		once:   make(map[string]cron.EntryID),
	}
}

// AddRecurring registers job under a standard five-field cron spec.
func (s *Scheduler) AddRecurring(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return err
	}
	log.Printf("📅 %s scheduled (%s)", name, spec)
	return nil
}

// AddOnce runs job once at the given time. A job already registered under the
// same name is replaced. Times in the past run right away.
func (s *Scheduler) AddOnce(name string, at time.Time, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.once[name]; ok {
		s.cron.Remove(id)
		delete(s.once, name)
	}
	if !at.After(s.now()) {
		log.Printf("📅 %s is overdue (%s), running now", name, at.Format(time.RFC3339))
		go s.run(name, job)
		return
	}
	s.once[name] = s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() {
		s.forget(name)
		s.run(name, job)
	}))
	log.Printf("📅 %s scheduled at %s", name, at.Format(time.RFC3339))
}

// Cancel removes a pending one-shot job.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.once[name]; ok {
		s.cron.Remove(id)
		delete(s.once, name)
	}
}

// Pending reports whether a one-shot job is waiting under name.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.once[name]
	return ok
}

func (s *Scheduler) forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.once[name]; ok {
		s.cron.Remove(id)
		delete(s.once, name)
	}
}

func (s *Scheduler) run(name string, job Job) {
	log.Printf("🕘 %s triggered", name)
	if err := job(s.ctx); err != nil {
		log.Printf("❌ %s failed: %v", name, err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("📅 Scheduler started with %d entries", len(s.cron.Entries()))
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// onceSchedule fires a single time at `at`.
type onceSchedule struct {
	at time.Time
}

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
