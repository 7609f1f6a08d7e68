package skills

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// definitionPatterns are matched against every root
var definitionPatterns = []string{
	"**/*.{yaml,yml,json,jsonc,toml}",
	"**/" + skillMarkdownFile,
}

// root is one scanned definition location
type root struct {
	fsys   fs.FS
	dir    string // display prefix for source paths
	origin skilltypes.Origin
}

// Discovery scans the built-in, community and custom definition roots
type Discovery struct {
	roots     []root
	validator *Validator
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithBuiltin adds an embedded filesystem of built-in skills
func WithBuiltin(fsys fs.FS) Option {
	return func(d *Discovery) error {
		if fsys == nil {
			return errors.New("builtin filesystem is nil")
		}
		d.roots = append(d.roots, root{fsys: fsys, dir: "builtin:", origin: skilltypes.OriginBuiltin})
		return nil
	}
}

// WithCommunityDirs adds community skill directories
func WithCommunityDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.addDirs(skilltypes.OriginCommunity, dirs...)
		return nil
	}
}

// WithCustomDirs adds user-custom skill directories
func WithCustomDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.addDirs(skilltypes.OriginCustom, dirs...)
		return nil
	}
}

// WithDefaultDirs initializes with the embedded built-ins and default directories
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		builtin, err := BuiltinFS()
		if err != nil {
			return err
		}
		if err := WithBuiltin(builtin)(d); err != nil {
			return err
		}
		d.addDirs(skilltypes.OriginCommunity, filepath.Join(homeDir, ".skillet", "community"))
		d.addDirs(skilltypes.OriginCustom,
			filepath.Join(homeDir, ".skillet", "skills"), // User-global
			"./.skillet/skills",                          // Repo-local (highest precedence)
		)
		return nil
	}
}

func (d *Discovery) addDirs(origin skilltypes.Origin, dirs ...string) {
	for _, dir := range dirs {
		d.roots = append(d.roots, root{fsys: os.DirFS(dir), dir: dir, origin: origin})
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{validator: NewValidator()}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, err
		}
		return d, nil
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// CustomDirs returns the configured custom directories in scan order
func (d *Discovery) CustomDirs() []string {
	var dirs []string
	for _, r := range d.roots {
		if r.origin == skilltypes.OriginCustom {
			dirs = append(dirs, r.dir)
		}
	}
	return dirs
}

// Dirs returns every on-disk root in scan order
func (d *Discovery) Dirs() []string {
	var dirs []string
	for _, r := range d.roots {
		if r.origin != skilltypes.OriginBuiltin {
			dirs = append(dirs, r.dir)
		}
	}
	return dirs
}

// SkippedDefinition is a definition file that failed to parse or validate
type SkippedDefinition struct {
	Path string
	Err  error
}

// DiscoveryReport summarizes one discovery pass
type DiscoveryReport struct {
	Scanned    int
	Valid      int
	Skipped    []SkippedDefinition
	Overridden []string
}

// Err aggregates every skipped definition into one error, or nil
func (r *DiscoveryReport) Err() error {
	var result *multierror.Error
	for _, s := range r.Skipped {
		result = multierror.Append(result, errors.Wrap(s.Err, s.Path))
	}
	return result.ErrorOrNil()
}

// Discover scans every root in order and returns the valid skills keyed by
// name. A later root overrides an earlier definition of the same name.
// Invalid definitions are skipped and reported, never fatal.
func (d *Discovery) Discover(ctx context.Context) (map[string]*skilltypes.Skill, *DiscoveryReport) {
	found := make(map[string]*skilltypes.Skill)
	report := &DiscoveryReport{}

	for _, r := range d.roots {
		d.discoverRoot(ctx, r, found, report)
	}
	report.Valid = len(found)
	return found, report
}

func (d *Discovery) discoverRoot(ctx context.Context, r root, found map[string]*skilltypes.Skill, report *DiscoveryReport) {
	log := logger.G(ctx).WithField("root", r.dir)

	if r.origin != skilltypes.OriginBuiltin {
		if info, err := os.Stat(r.dir); err != nil || !info.IsDir() {
			log.Debug("skills directory not found, skipping")
			return
		}
	}

	files, err := matchDefinitions(r.fsys)
	if err != nil {
		log.WithError(err).Warn("failed to scan skills directory")
		return
	}

	for _, file := range files {
		sourcePath := r.dir + file
		if r.origin != skilltypes.OriginBuiltin {
			sourcePath = filepath.Join(r.dir, filepath.FromSlash(file))
		}
		report.Scanned++

		skill, err := d.load(r.fsys, file, sourcePath)
		if err != nil {
			log.WithField("path", sourcePath).WithError(err).Warn("skipping invalid skill definition")
			report.Skipped = append(report.Skipped, SkippedDefinition{Path: sourcePath, Err: err})
			continue
		}
		skill.Source.Origin = r.origin

		if prev, exists := found[skill.Name]; exists {
			log.WithField("skill", skill.Name).WithField("previous", prev.Source.Path).Debug("skill definition overridden")
			report.Overridden = append(report.Overridden, skill.Name)
		}
		found[skill.Name] = skill
	}
}

func (d *Discovery) load(fsys fs.FS, file, sourcePath string) (*skilltypes.Skill, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	skill, err := ParseDefinition(sourcePath, data)
	if err != nil {
		return nil, err
	}
	if err := d.validator.Validate(skill); err != nil {
		return nil, err
	}
	return skill, nil
}

func matchDefinitions(fsys fs.FS) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, pattern := range definitionPatterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to glob %s", pattern)
		}
		for _, m := range matches {
			if seen[m] || isHidden(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// isHidden skips files inside dot-directories such as .git
func isHidden(p string) bool {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if base := path.Base(dir); len(base) > 1 && base[0] == '.' {
			return true
		}
	}
	return false
}
