// Package skills is the skill center: it discovers and validates skill
// definitions, keeps the in-memory catalog, resolves dependencies, caches
// results and hands validated calls to the executor.
package skills

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// OutputPolicy decides what happens when a backend returns outputs that do
// not match the declared schema
type OutputPolicy string

const (
	// OutputPolicyStrict fails the call with an *OutputMismatchError
	OutputPolicyStrict OutputPolicy = "strict"
	// OutputPolicyWarn logs the mismatch and returns the result uncached
	OutputPolicyWarn OutputPolicy = "warn"
)

// Executor runs a validated skill with concrete inputs. deps holds the
// resolved definitions of the skill's dependencies.
type Executor interface {
	Execute(ctx context.Context, skill *skilltypes.Skill, inputs, execCtx skilltypes.Values, deps map[string]*skilltypes.Skill) (skilltypes.Values, error)
}

// Recorder persists execution records
type Recorder interface {
	Record(ctx context.Context, record skilltypes.ExecutionRecord) error
	Count(ctx context.Context) (int64, error)
}

// Registry owns the catalog of valid skills and is the facade callers use
type Registry struct {
	mu         sync.RWMutex
	skills     map[string]*skilltypes.Skill
	lastReport *DiscoveryReport
	discovered int

	discovery    *Discovery
	validator    *Validator
	executor     Executor
	cache        *ResultCache
	cacheSize    int
	cacheTTL     time.Duration
	outputPolicy OutputPolicy
	recorder     Recorder
	allowlist    []glob.Glob
	installDir   string
	closers      []func() error
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry) error

// WithDiscovery sets the discovery used by Initialize and Discover
func WithDiscovery(d *Discovery) RegistryOption {
	return func(r *Registry) error {
		r.discovery = d
		return nil
	}
}

// WithExecutor sets the executor skills are dispatched to
func WithExecutor(e Executor) RegistryOption {
	return func(r *Registry) error {
		r.executor = e
		return nil
	}
}

// WithCacheSize bounds the result cache
func WithCacheSize(size int) RegistryOption {
	return func(r *Registry) error {
		r.cacheSize = size
		return nil
	}
}

// WithCacheTTL sets how long cached results stay valid
func WithCacheTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) error {
		r.cacheTTL = ttl
		return nil
	}
}

// WithOutputPolicy sets the output mismatch policy
func WithOutputPolicy(policy OutputPolicy) RegistryOption {
	return func(r *Registry) error {
		switch policy {
		case "":
			r.outputPolicy = OutputPolicyStrict
		case OutputPolicyStrict, OutputPolicyWarn:
			r.outputPolicy = policy
		default:
			return errors.Errorf("unknown output policy %q", policy)
		}
		return nil
	}
}

// WithRecorder records every execution
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) error {
		r.recorder = rec
		return nil
	}
}

// WithAllowlist keeps only skills whose names match one of the glob patterns
func WithAllowlist(patterns ...string) RegistryOption {
	return func(r *Registry) error {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return errors.Wrapf(err, "invalid allowlist pattern %q", p)
			}
			r.allowlist = append(r.allowlist, g)
		}
		return nil
	}
}

// WithInstallDir sets the custom root Install copies definitions into
func WithInstallDir(dir string) RegistryOption {
	return func(r *Registry) error {
		r.installDir = dir
		return nil
	}
}

// WithCloser registers a teardown hook run by Close
func WithCloser(fn func() error) RegistryOption {
	return func(r *Registry) error {
		r.closers = append(r.closers, fn)
		return nil
	}
}

// NewRegistry creates an empty registry; call Initialize to populate it
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		skills:       make(map[string]*skilltypes.Skill),
		validator:    NewValidator(),
		outputPolicy: OutputPolicyStrict,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, errors.Wrap(err, "failed to apply registry option")
		}
	}
	r.cache = NewResultCache(r.cacheSize, r.cacheTTL)
	return r, nil
}

// Initialize populates the registry by running discovery. Calling it again
// re-discovers.
func (r *Registry) Initialize(ctx context.Context) error {
	if r.discovery == nil {
		d, err := NewDiscovery()
		if err != nil {
			return errors.Wrap(err, "failed to create skill discovery")
		}
		r.discovery = d
	}
	_, err := r.Discover(ctx)
	return err
}

// Discover scans the definition roots and replaces the catalog with the valid
// skills found. Invalid definitions are skipped and returned in the report.
// Cached results are dropped since definitions may have changed.
func (r *Registry) Discover(ctx context.Context) (*DiscoveryReport, error) {
	if r.discovery == nil {
		return nil, errors.New("registry has no discovery configured")
	}

	var (
		found  map[string]*skilltypes.Skill
		report *DiscoveryReport
	)
	_ = telemetry.WithSpan(ctx, "skills.discover", func(ctx context.Context) error {
		found, report = r.discovery.Discover(ctx)
		telemetry.SetAttributes(ctx,
			attribute.Int("skills.scanned", report.Scanned),
			attribute.Int("skills.valid", report.Valid),
			attribute.Int("skills.skipped", len(report.Skipped)),
		)
		return nil
	})
	registered := make(map[string]*skilltypes.Skill, len(found))
	for name, skill := range found {
		if !r.allowed(name) {
			continue
		}
		registered[name] = skill
	}

	r.mu.Lock()
	r.skills = registered
	r.lastReport = report
	r.discovered = len(found)
	r.mu.Unlock()
	r.cache.Clear()

	logger.G(ctx).WithFields(logrus.Fields{
		"discovered": len(found),
		"registered": len(registered),
		"skipped":    len(report.Skipped),
	}).Debug("skill discovery complete")

	return report, nil
}

func (r *Registry) allowed(name string) bool {
	if len(r.allowlist) == 0 {
		return true
	}
	for _, g := range r.allowlist {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Register validates a skill and adds it, replacing any skill of the same name
func (r *Registry) Register(skill *skilltypes.Skill) error {
	if err := r.validator.Validate(skill); err != nil {
		return err
	}
	if skill.Source.Origin == "" {
		skill.Source.Origin = skilltypes.OriginInline
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[skill.Name] = skill
	return nil
}

// Get returns the skill registered under name
func (r *Registry) Get(name string) (*skilltypes.Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[name]
	return skill, ok
}

// Has reports whether a skill is registered under name
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all skills sorted by name, or only those in category
func (r *Registry) List(category string) []*skilltypes.Skill {
	return r.Search("", Filters{Category: category})
}

// Names returns all registered skill names sorted alphabetically
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastReport returns the report of the most recent discovery pass
func (r *Registry) LastReport() *DiscoveryReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReport
}

// ClearCache empties the result cache without touching the catalog
func (r *Registry) ClearCache() {
	r.cache.Clear()
}

// Reset drops every skill and cached result
func (r *Registry) Reset() {
	r.mu.Lock()
	r.skills = make(map[string]*skilltypes.Skill)
	r.lastReport = nil
	r.discovered = 0
	r.mu.Unlock()
	r.cache.Clear()
}

// Close runs registered teardown hooks
func (r *Registry) Close() error {
	var result *multierror.Error
	for _, fn := range r.closers {
		if err := fn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.closers = nil
	return result.ErrorOrNil()
}

// Execute runs the skill registered under name
func (r *Registry) Execute(ctx context.Context, name string, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	skill, ok := r.Get(name)
	if !ok {
		return nil, &skilltypes.NotFoundError{Name: name}
	}
	return r.execute(ctx, skill, inputs, execCtx)
}

// ExecuteSkill runs a skill definition passed directly. The definition is
// validated first since it may never have been registered.
func (r *Registry) ExecuteSkill(ctx context.Context, skill *skilltypes.Skill, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	if err := r.validator.Validate(skill); err != nil {
		return nil, err
	}
	return r.execute(ctx, skill, inputs, execCtx)
}

func (r *Registry) execute(ctx context.Context, skill *skilltypes.Skill, inputs, execCtx skilltypes.Values) (result skilltypes.Values, err error) {
	if r.executor == nil {
		return nil, errors.New("registry has no executor configured")
	}

	path := callPath(ctx)
	if containsName(path, skill.Name) {
		return nil, &skilltypes.CycleDetectedError{Path: append(append([]string{}, path...), skill.Name)}
	}
	ctx = withCallPath(ctx, skill.Name)

	ctx, span := telemetry.Tracer("").Start(ctx, "skills.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("skill.name", skill.Name),
		attribute.String("skill.type", string(skill.ExecutionKind())),
	)

	record := skilltypes.ExecutionRecord{
		ID:        uuid.NewString(),
		Skill:     skill.Name,
		Type:      skill.ExecutionKind(),
		StartedAt: time.Now(),
	}
	log := logger.G(ctx).WithFields(logrus.Fields{
		"skill":        skill.Name,
		"type":         skill.ExecutionKind(),
		"execution_id": record.ID,
	})

	defer func() {
		record.Duration = time.Since(record.StartedAt)
		record.Success = err == nil
		if err != nil {
			record.Error = err.Error()
			telemetry.RecordError(ctx, err)
		}
		span.SetAttributes(attribute.Bool("skill.cached", record.Cached))
		log.WithField("cached", record.Cached).WithField("duration", record.Duration).Debug("skill executed")
		r.record(ctx, record)
	}()

	deps, err := r.resolveDependencies(skill, path)
	if err != nil {
		return nil, err
	}

	inputs = ApplyDefaults(skill, inputs)
	if err := ValidateInputs(skill, inputs); err != nil {
		return nil, err
	}

	key, err := CacheKey(skill.Name, inputs)
	if err != nil {
		return nil, err
	}
	record.InputsHash = key
	if cached, ok := r.cache.Get(key); ok {
		record.Cached = true
		return cached, nil
	}

	result, err = r.executor.Execute(ctx, skill, inputs, execCtx, deps)
	if err != nil {
		return nil, err
	}

	if err := ValidateOutputs(skill, result); err != nil {
		if r.outputPolicy == OutputPolicyWarn {
			log.WithError(err).Warn("skill returned outputs that do not match its schema")
			return result, nil
		}
		return nil, err
	}

	r.cache.Put(key, result)
	return result, nil
}

func (r *Registry) record(ctx context.Context, record skilltypes.ExecutionRecord) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, record); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to record skill execution")
	}
}
