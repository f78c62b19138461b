package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/services"
)

// autoOrder is the auto-selection priority. The offline provider is the
// fallback when none of these is available.
var autoOrder = []string{NameFishAudio, NameFishSpeech}

// Registry resolves provider names and owns the single cached instance.
type Registry struct {
	// swap serializes instance replacement and Close. Lock order: swap, mu.
	swap      sync.Mutex
	mu        sync.RWMutex
	backends  map[string]Backend
	preferred string
	maxText   int
	current   *instance
	closed    bool
	logger    *slog.Logger
}

type instance struct {
	name     string
	provider Provider
	inflight sync.WaitGroup
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.NewComponentLogger(logger, "tts")
	}
}

// WithMaxTextLength sets the per-request text limit; <= 0 disables it.
func WithMaxTextLength(n int) Option {
	return func(r *Registry) { r.maxText = n }
}

// WithPreferred sets the provider used when a caller gives no name.
func WithPreferred(name string) Option {
	return func(r *Registry) { r.preferred = name }
}

// NewRegistry builds a registry over the given backends. An offline backend
// is mandatory since it is the auto-selection fallback.
func NewRegistry(backends []Backend, opts ...Option) (*Registry, error) {
	r := &Registry{
		backends:  make(map[string]Backend, len(backends)),
		preferred: NameAuto,
		logger:    logging.NewComponentLogger(nil, "tts"),
	}
	for _, b := range backends {
		name := strings.ToLower(strings.TrimSpace(b.Descriptor.Name))
		if name == "" || name == NameAuto {
			return nil, services.Wrap(services.ErrConfiguration, "tts", "register", fmt.Sprintf("invalid backend name %q", b.Descriptor.Name), nil)
		}
		if b.New == nil {
			return nil, services.Wrap(services.ErrConfiguration, "tts", "register", fmt.Sprintf("backend %s has no constructor", name), nil)
		}
		if _, dup := r.backends[name]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "tts", "register", fmt.Sprintf("backend %s registered twice", name), nil)
		}
		b.Descriptor.Name = name
		r.backends[name] = b
	}
	if _, ok := r.backends[NameOffline]; !ok {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "register", "offline backend is required", nil)
	}
	for _, opt := range opts {
		opt(r)
	}
	preferred, err := r.canonical(r.preferred)
	if err != nil {
		return nil, err
	}
	r.preferred = preferred
	return r, nil
}

// canonical normalizes a requested name. Empty means the preferred provider.
func (r *Registry) canonical(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		r.mu.RLock()
		name = r.preferred
		r.mu.RUnlock()
		return name, nil
	case NameAuto:
		return NameAuto, nil
	case AliasCoqui:
		name = NameOffline
	}
	if _, ok := r.backends[name]; !ok {
		return "", services.Wrap(services.ErrValidation, "tts", "resolve",
			fmt.Sprintf("unknown provider %q (choose auto, %s)", name, strings.Join(r.names(), ", ")), nil)
	}
	return name, nil
}

// Canonical validates a requested provider name without touching any backend.
func (r *Registry) Canonical(name string) (string, error) {
	return r.canonical(name)
}

// Resolve turns a requested name ("auto", "", an alias or a concrete name)
// into the concrete provider that would serve it right now.
func (r *Registry) Resolve(ctx context.Context, requested string) (string, error) {
	name, err := r.canonical(requested)
	if err != nil {
		return "", err
	}
	if name != NameAuto {
		if err := r.available(ctx, r.backends[name]); err != nil {
			return "", unavailable(name, err)
		}
		return name, nil
	}
	for _, candidate := range autoOrder {
		backend, ok := r.backends[candidate]
		if !ok {
			continue
		}
		err := r.available(ctx, backend)
		if err == nil {
			return candidate, nil
		}
		r.logger.Debug("auto-selection skipped provider",
			logging.Provider(candidate),
			logging.String("reason", err.Error()),
		)
	}
	return NameOffline, nil
}

func (r *Registry) available(ctx context.Context, b Backend) error {
	if b.Available == nil {
		return nil
	}
	return b.Available(ctx)
}

// Preflight resolves requested and checks req's options against the resolved
// backend's static descriptor. Text is not checked.
func (r *Registry) Preflight(ctx context.Context, requested string, req Request) (string, error) {
	name, err := r.Resolve(ctx, requested)
	if err != nil {
		return "", err
	}
	if err := CheckOptions(r.backends[name].Descriptor, req); err != nil {
		return name, err
	}
	return name, nil
}

// Synthesize resolves requested, validates req against the static
// descriptor, swaps the cached instance if needed, validates again against
// the live provider and dispatches it. A rejected request never replaces the
// cached instance.
func (r *Registry) Synthesize(ctx context.Context, requested string, req Request) (Result, error) {
	name, err := r.Resolve(ctx, requested)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateRequest(r.backends[name].Descriptor, req, r.maxText); err != nil {
		return Result{Provider: name}, err
	}
	inst, err := r.acquire(name)
	if err != nil {
		return Result{Provider: name}, err
	}
	defer inst.inflight.Done()

	if err := ValidateRequest(r.liveDescriptor(inst), req, r.maxText); err != nil {
		return Result{Provider: name}, err
	}

	ctx = services.WithProvider(ctx, name)
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()
	result, err := inst.provider.Synthesize(ctx, req)
	if err != nil {
		return Result{Provider: name}, err
	}
	result.Provider = name
	if result.Path == "" {
		result.Path = req.OutputPath
	}
	if result.Elapsed == 0 {
		result.Elapsed = time.Since(start)
	}
	logger.Debug("synthesis finished",
		logging.String("target_language", req.Language),
		logging.Int64("audio_bytes", result.Bytes),
		logging.Duration("synthesis_duration", result.Elapsed),
	)
	return result, nil
}

// acquire returns the live instance for name with its in-flight counter
// incremented. Callers must call inst.inflight.Done.
//
// A switch detaches the old instance under mu, then drains and cleans it up
// with only swap held, so readers of the registry (Preferred, Describe,
// Current) are not blocked by a long synthesis. Current reports "" until the
// new instance is installed.
func (r *Registry) acquire(name string) (*instance, error) {
	if inst := r.join(name); inst != nil {
		return inst, nil
	}

	r.swap.Lock()
	defer r.swap.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errClosed()
	}
	if inst := r.current; inst != nil && inst.name == name {
		inst.inflight.Add(1)
		r.mu.Unlock()
		return inst, nil
	}
	old := r.current
	r.current = nil
	r.mu.Unlock()

	previous := ""
	if old != nil {
		previous = old.name
		r.retire(old)
	}
	provider, err := r.backends[name].New()
	if err != nil {
		return nil, unavailable(name, err)
	}
	inst := &instance{name: name, provider: provider}
	inst.inflight.Add(1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		inst.inflight.Done()
		r.retire(inst)
		return nil, errClosed()
	}
	r.current = inst
	r.mu.Unlock()

	if previous != "" {
		r.logger.Info("tts provider switched",
			logging.String(logging.FieldEventType, "provider_switch"),
			logging.String("previous_provider", previous),
			logging.Provider(name),
		)
	} else {
		r.logger.Info("tts provider initialized",
			logging.String(logging.FieldEventType, "provider_init"),
			logging.Provider(name),
		)
	}
	return inst, nil
}

// join returns the cached instance when it already serves name.
func (r *Registry) join(name string) *instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.current; inst != nil && inst.name == name && !r.closed {
		inst.inflight.Add(1)
		return inst
	}
	return nil
}

// retire drains and cleans up inst. inst must already be detached from the
// registry so no new call can join it while it drains.
func (r *Registry) retire(inst *instance) {
	inst.inflight.Wait()
	if err := inst.provider.Cleanup(); err != nil {
		logging.WarnWithContext(r.logger, "provider cleanup failed", "provider_cleanup_failed",
			logging.Provider(inst.name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the provider backend for leaked resources"),
			logging.String(logging.FieldImpact, "the next provider was still initialized"),
		)
	}
}

func errClosed() error {
	return services.Wrap(services.ErrResource, "tts", "acquire", "provider registry is closed", nil)
}

func (r *Registry) liveDescriptor(inst *instance) Descriptor {
	d := r.backends[inst.name].Descriptor
	d.Capabilities = inst.provider.Capabilities()
	d.Languages = inst.provider.SupportedLanguages()
	d.Emotions = inst.provider.Emotions()
	return d
}

// Descriptor returns the static descriptor for a concrete provider name or
// alias.
func (r *Registry) Descriptor(name string) (Descriptor, error) {
	canonical, err := r.canonical(name)
	if err != nil {
		return Descriptor{}, err
	}
	if canonical == NameAuto {
		return Descriptor{}, services.Wrap(services.ErrValidation, "tts", "describe", "auto is not a concrete provider", nil)
	}
	return r.backends[canonical].Descriptor, nil
}

// Describe reports every backend with its current availability.
func (r *Registry) Describe(ctx context.Context) []Status {
	r.mu.RLock()
	current := ""
	if r.current != nil {
		current = r.current.name
	}
	preferred := r.preferred
	r.mu.RUnlock()

	out := make([]Status, 0, len(r.backends))
	for _, name := range r.names() {
		backend := r.backends[name]
		status := Status{
			Descriptor: backend.Descriptor,
			Current:    name == current,
			Preferred:  name == preferred,
		}
		if err := r.available(ctx, backend); err != nil {
			status.Reason = services.PublicMessage(err)
		} else {
			status.Available = true
		}
		out = append(out, status)
	}
	return out
}

// SetDefault changes the provider used when callers give no name.
func (r *Registry) SetDefault(name string) error {
	canonical, err := r.canonical(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		canonical = NameAuto
	}
	r.mu.Lock()
	r.preferred = canonical
	r.mu.Unlock()
	r.logger.Info("preferred tts provider set", logging.Provider(canonical))
	return nil
}

// Preferred returns the provider used for requests without a name.
func (r *Registry) Preferred() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preferred
}

// Current returns the name of the cached instance, if any.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return ""
	}
	return r.current.name
}

// HealthCheck probes the cached instance. It reports "" and nil when nothing
// has been initialized yet.
func (r *Registry) HealthCheck(ctx context.Context) (string, error) {
	r.mu.RLock()
	inst := r.current
	if inst == nil || r.closed {
		r.mu.RUnlock()
		return "", nil
	}
	inst.inflight.Add(1)
	r.mu.RUnlock()
	defer inst.inflight.Done()
	return inst.name, inst.provider.HealthCheck(ctx)
}

// Close drains and cleans up the cached instance. Later calls fail with
// ErrResource.
func (r *Registry) Close() error {
	r.swap.Lock()
	defer r.swap.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	current := r.current
	r.current = nil
	r.mu.Unlock()

	if current != nil {
		r.retire(current)
	}
	return nil
}

// names lists backends with the auto-selection order first.
func (r *Registry) names() []string {
	seen := make(map[string]struct{}, len(r.backends))
	out := make([]string, 0, len(r.backends))
	for _, name := range append(append([]string{}, autoOrder...), NameOffline) {
		if _, ok := r.backends[name]; ok {
			out = append(out, name)
			seen[name] = struct{}{}
		}
	}
	var rest []string
	for name := range r.backends {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func unavailable(name string, err error) error {
	if services.Marker(err) != nil {
		return fmt.Errorf("provider %s unavailable: %w", name, err)
	}
	return services.Wrap(services.ErrConfiguration, "tts", name, "provider unavailable", err)
}
