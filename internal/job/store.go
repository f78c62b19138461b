package job

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxdub/internal/services"
)

// DefaultSpeed is applied when a spec leaves Speed unset.
const DefaultSpeed = 1.0

// Store is the in-memory job arena. The index is guarded by an RW lock that
// is only read-locked on lookups; each job carries its own mutex so updates to
// different jobs never contend.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	maxJobs int
	now     func() time.Time
	newID   func() string
}

type entry struct {
	mu      sync.Mutex
	job     Job
	removed bool
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides UUID allocation (tests).
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore builds an empty arena. maxJobs <= 0 disables the capacity limit.
func NewStore(maxJobs int, opts ...Option) *Store {
	s := &Store{
		jobs:    make(map[string]*entry),
		maxJobs: maxJobs,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a queued job from spec.
func (s *Store) Create(spec Spec) (Job, error) {
	speed := spec.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	provider := spec.Provider
	if provider == "" {
		provider = "auto"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxJobs > 0 && len(s.jobs) >= s.maxJobs {
		return Job{}, services.Wrap(services.ErrResource, "jobs", "create",
			fmt.Sprintf("job store is full (%d jobs); expire finished jobs first", s.maxJobs), nil)
	}

	id := s.newID()
	for _, exists := s.jobs[id]; exists; _, exists = s.jobs[id] {
		id = s.newID()
	}
	job := Job{
		ID:                id,
		Status:            StatusQueued,
		CurrentStep:       StepQueued,
		TargetLanguage:    spec.TargetLanguage,
		ProviderRequested: provider,
		VoiceID:           spec.VoiceID,
		Emotion:           spec.Emotion,
		Speed:             speed,
		OriginalFilename:  spec.OriginalFilename,
		CreatedAt:         s.now(),
	}
	s.jobs[id] = &entry{job: job}
	return job, nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Job{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Job{}, notFound(id)
	}
	return e.job, nil
}

// Update applies fn to a working copy of the job and commits it when fn
// succeeds and the result is a legal successor state. On any error the stored
// job is left untouched and its current snapshot is returned.
func (s *Store) Update(id string, fn func(*Job) error) (Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Job{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Job{}, notFound(id)
	}

	current := e.job
	next := current
	if err := fn(&next); err != nil {
		return current, err
	}
	if err := s.checkSuccessor(current, &next); err != nil {
		return current, err
	}
	e.job = next
	return next, nil
}

func (s *Store) checkSuccessor(current Job, next *Job) error {
	invalid := func(format string, args ...any) error {
		return services.Wrap(services.ErrValidation, "jobs", "update", fmt.Sprintf(format, args...), nil)
	}
	if next.ID != current.ID || !next.CreatedAt.Equal(current.CreatedAt) {
		return invalid("job %s: identity fields are immutable", current.ID)
	}
	if current.Status.IsTerminal() {
		return invalid("job %s is %s and can no longer change", current.ID, current.Status)
	}
	if next.Status != current.Status && !CanTransition(current.Status, next.Status) {
		return invalid("job %s: illegal transition %s -> %s", current.ID, current.Status, next.Status)
	}
	if next.Progress < current.Progress {
		return invalid("job %s: progress may not decrease (%d -> %d)", current.ID, current.Progress, next.Progress)
	}
	if next.Progress > 100 {
		return invalid("job %s: progress %d exceeds 100", current.ID, next.Progress)
	}
	if (next.Progress == 100) != (next.Status == StatusCompleted) {
		return invalid("job %s: progress 100 is reserved for completed jobs", current.ID)
	}
	if next.Status == StatusFailed && next.Error == "" {
		return invalid("job %s: failed jobs must carry an error", current.ID)
	}
	if next.Status != StatusFailed && next.Error != "" {
		return invalid("job %s: error set on a job that is not failed", current.ID)
	}

	now := s.now()
	if next.Status != current.Status {
		switch next.Status {
		case StatusProcessing:
			if next.StartedAt.IsZero() {
				next.StartedAt = now
			}
		case StatusCompleted:
			if next.CompletedAt.IsZero() {
				next.CompletedAt = now
			}
		case StatusFailed:
			if next.FailedAt.IsZero() {
				next.FailedAt = now
			}
		}
	}
	return nil
}

// List returns snapshots ordered by creation time. When statuses are given,
// only jobs in those statuses are returned.
func (s *Store) List(statuses ...Status) []Job {
	filter := make(map[Status]struct{}, len(statuses))
	for _, st := range statuses {
		filter[st] = struct{}{}
	}

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		job, removed := e.job, e.removed
		e.mu.Unlock()
		if removed {
			continue
		}
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats aggregates job counts per status.
func (s *Store) Stats() Counts {
	var counts Counts
	for _, job := range s.List() {
		counts.Total++
		switch job.Status {
		case StatusQueued:
			counts.Queued++
		case StatusProcessing:
			counts.Processing++
		case StatusCompleted:
			counts.Completed++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// Expire removes terminal jobs whose terminal timestamp is older than
// olderThan and returns the removed snapshots. Active jobs are never removed.
// Callers own any artifact cleanup for the returned jobs.
func (s *Store) Expire(olderThan time.Duration) []Job {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []Job
	for id, e := range s.jobs {
		e.mu.Lock()
		job := e.job
		terminalAt := job.TerminalAt()
		if !terminalAt.IsZero() && terminalAt.Before(cutoff) {
			e.removed = true
			delete(s.jobs, id)
			expired = append(expired, job)
		}
		e.mu.Unlock()
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })
	return expired
}

// Delete removes one terminal job and returns its final snapshot.
func (s *Store) Delete(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.job.Status.IsTerminal() {
		return e.job, services.Wrap(services.ErrValidation, "jobs", "delete",
			fmt.Sprintf("job %s is still %s", id, e.job.Status), nil)
	}
	e.removed = true
	delete(s.jobs, id)
	return e.job, nil
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	return e, ok
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "jobs", "lookup", fmt.Sprintf("job %q not found", id), nil)
}
