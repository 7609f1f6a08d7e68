package skills

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// maxDefinitionSize caps downloaded definitions
const maxDefinitionSize = 1 << 20

var installClient = &http.Client{Timeout: 30 * time.Second}

// Install copies skill definitions from source into the install directory
// and re-discovers. source is a definition file, a directory of definitions
// or an http(s) URL to a single definition. Every definition is parsed and
// validated before anything is written. Returns the installed skill names.
func (r *Registry) Install(ctx context.Context, source string) ([]string, error) {
	dir, err := r.resolveInstallDir()
	if err != nil {
		return nil, err
	}

	pending, err := collectInstallable(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, errors.Errorf("no skill definitions found in %s", source)
	}

	targets := make([]string, len(pending))
	for i, p := range pending {
		if targets[i], err = installTarget(dir, p); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create install directory %s", dir)
	}

	names := make([]string, 0, len(pending))
	for i, p := range pending {
		target := targets[i]
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return names, errors.Wrapf(err, "failed to create directory for %s", p.skill.Name)
		}
		log := logger.G(ctx).WithField("skill", p.skill.Name).WithField("path", target)
		if existing, err := os.ReadFile(target); err == nil {
			if bytes.Equal(existing, p.data) {
				log.Info("skill already up to date")
				names = append(names, p.skill.Name)
				continue
			}
			log.WithField("diff", definitionDiff(target, existing, p.data)).Debug("replacing installed skill")
		}
		if err := lockedfile.Write(target, bytes.NewReader(p.data), 0o644); err != nil {
			return names, errors.Wrapf(err, "failed to write skill %s", p.skill.Name)
		}
		log.Info("installed skill")
		names = append(names, p.skill.Name)
	}

	if r.discovery != nil {
		if _, err := r.Discover(ctx); err != nil {
			return names, err
		}
	}
	return names, nil
}

func (r *Registry) resolveInstallDir() (string, error) {
	if r.installDir != "" {
		return r.installDir, nil
	}
	if r.discovery != nil {
		if dirs := r.discovery.CustomDirs(); len(dirs) > 0 {
			return dirs[0], nil
		}
	}
	return "", errors.New("no install directory configured")
}

// definitionDiff renders the change an install makes to an existing definition
func definitionDiff(target string, before, after []byte) string {
	return udiff.Unified(target, target, string(before), string(after))
}

type installable struct {
	file  string // original file name, used to keep the format
	data  []byte
	skill *skilltypes.Skill
}

// installTarget keeps SKILL.md definitions in a directory named after the
// skill and names everything else after the skill with its original
// extension. The target must stay inside dir.
func installTarget(dir string, p installable) (string, error) {
	target := filepath.Join(dir, p.skill.Name+strings.ToLower(filepath.Ext(p.file)))
	if path.Base(filepath.ToSlash(p.file)) == skillMarkdownFile {
		target = filepath.Join(dir, p.skill.Name, skillMarkdownFile)
	}
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", errors.Errorf("skill %q would be installed outside %s", p.skill.Name, dir)
	}
	return target, nil
}

func collectInstallable(ctx context.Context, source string) ([]installable, error) {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		data, err := fetchDefinition(ctx, source)
		if err != nil {
			return nil, err
		}
		p, err := prepareInstall(path.Base(u.Path), data)
		if err != nil {
			return nil, err
		}
		return []installable{p}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", source)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", source)
		}
		p, err := prepareInstall(source, data)
		if err != nil {
			return nil, err
		}
		return []installable{p}, nil
	}

	fsys := os.DirFS(source)
	files, err := matchDefinitions(fsys)
	if err != nil {
		return nil, err
	}

	var (
		pending []installable
		result  *multierror.Error
	)
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to read %s", file))
			continue
		}
		p, err := prepareInstall(file, data)
		if err != nil {
			result = multierror.Append(result, errors.Wrap(err, file))
			continue
		}
		pending = append(pending, p)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return pending, nil
}

func prepareInstall(file string, data []byte) (installable, error) {
	if !IsDefinitionFile(file) {
		return installable{}, errors.Errorf("%s is not a skill definition file", file)
	}
	skill, err := ParseDefinition(file, data)
	if err != nil {
		return installable{}, err
	}
	if err := NewValidator().Validate(skill); err != nil {
		return installable{}, err
	}
	return installable{file: file, data: data, skill: skill}, nil
}

func fetchDefinition(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := installClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to fetch %s: %s", source, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDefinitionSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", source)
	}
	if len(data) > maxDefinitionSize {
		return nil, errors.Errorf("definition at %s exceeds %d bytes", source, maxDefinitionSize)
	}
	return data, nil
}
