package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Job is one unit of maintenance work. Name must be unique per registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order, keyed by name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry registers jobs in order and fails on a nil job or a reused
// name.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := job.Name()
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("job %q registered twice", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Only narrows the registry to the named jobs, keeping registration order.
// No names means every job.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			return nil, fmt.Errorf("unknown job %q (have %s)", n, strings.Join(r.names(), ", "))
		}
		want[n] = true
	}
	out := &Registry{index: make(map[string]int, len(want))}
	for _, job := range r.jobs {
		if want[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.index))
	for n := range r.index {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
