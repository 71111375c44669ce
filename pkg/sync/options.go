package sync

import (
	"time"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/reconcile"
)

// Options controls the overall orchestration of a reconciliation pass.
type Options struct {
	// Orchestration control
	DryRun   bool          // Plan and report without applying anything
	FailFast bool          // Abandon remaining subtrees on first failure
	Timeout  time.Duration // Timeout for the entire pass (0 means none)

	// Execution control
	MaxRetries  int           // Attempts per operation before abandoning
	BackoffBase time.Duration // First retry delay, doubled per attempt
	MaxParallel int           // Concurrent independent subtrees

	// Policy control
	PruneRemote bool                       // Delete remote records missing locally (destructive)
	Authorities []reconcile.FieldAuthority // Field authority table (nil means defaults)

	// Resolution control
	Defaults map[string]string // Global property defaults
}

// Defaults returns the default pass options.
func Defaults() *Options {
	return &Options{
		DryRun:      false,
		FailFast:    false,
		Timeout:     0,
		MaxRetries:  3,
		BackoffBase: 500 * time.Millisecond,
		MaxParallel: 4,
		PruneRemote: false,
		Authorities: nil,
		Defaults:    nil,
	}
}

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks if the options are valid.
func (o *Options) Validate() error {
	if o.Timeout < 0 {
		return &errors.ValidationError{Field: "Timeout", Value: o.Timeout, Message: "timeout must be non-negative"}
	}
	if o.MaxRetries < 1 {
		return &errors.ValidationError{Field: "MaxRetries", Value: o.MaxRetries, Message: "at least one attempt is required"}
	}
	if o.BackoffBase < 0 {
		return &errors.ValidationError{Field: "BackoffBase", Value: o.BackoffBase, Message: "backoff must be non-negative"}
	}
	if o.MaxParallel < 1 {
		return &errors.ValidationError{Field: "MaxParallel", Value: o.MaxParallel, Message: "parallelism must be at least 1"}
	}
	return nil
}

// Option is a function that configures pass Options.
type Option func(*Options)

// WithDryRun plans and reports without applying anything.
func WithDryRun(dryRun bool) Option {
	return func(o *Options) { o.DryRun = dryRun }
}

// WithFailFast abandons remaining subtrees after the first failure.
func WithFailFast(failFast bool) Option {
	return func(o *Options) { o.FailFast = failFast }
}

// WithTimeout bounds the entire pass.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.Timeout = timeout }
}

// WithMaxRetries sets the attempt ceiling per operation.
func WithMaxRetries(retries int) Option {
	return func(o *Options) { o.MaxRetries = retries }
}

// WithBackoffBase sets the first retry delay; later retries double it.
func WithBackoffBase(base time.Duration) Option {
	return func(o *Options) { o.BackoffBase = base }
}

// WithMaxParallel bounds how many independent subtrees execute concurrently.
func WithMaxParallel(parallel int) Option {
	return func(o *Options) { o.MaxParallel = parallel }
}

// WithPruneRemote deletes remote records that no longer exist locally.
func WithPruneRemote(prune bool) Option {
	return func(o *Options) { o.PruneRemote = prune }
}

// WithAuthorities replaces the default field authority table.
func WithAuthorities(authorities []reconcile.FieldAuthority) Option {
	return func(o *Options) { o.Authorities = authorities }
}

// WithDefaults sets global property defaults used during resolution.
func WithDefaults(defaults map[string]string) Option {
	return func(o *Options) { o.Defaults = defaults }
}
