package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sipeed/receval/pkg/config"
)

// Run names one recommendation file produced by a model.
type Run struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// runsFile is the YAML schema for run lists.
type runsFile struct {
	Runs []Run `yaml:"runs"`
}

// ParseRuns reads a YAML document listing runs. Relative paths are resolved
// against baseDir.
func ParseRuns(data []byte, baseDir string) ([]Run, error) {
	var rf runsFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse runs: %w", err)
	}
	return normalizeRuns(rf.Runs, baseDir)
}

// DiscoverRuns lists every *.tsv file directly under dir, sorted by name.
func DiscoverRuns(dir string) ([]Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}
	var runs []Run
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tsv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		runs = append(runs, Run{Name: RunName(path), Path: path})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Name < runs[j].Name })
	return runs, nil
}

// ResolveRuns returns the configured runs: explicit files first, then
// anything discovered in the runs directory.
func ResolveRuns(cfg config.RunsConfig) ([]Run, error) {
	runs := make([]Run, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		runs = append(runs, Run{Name: f.Name, Path: f.Path})
	}
	runs, err := normalizeRuns(runs, "")
	if err != nil {
		return nil, err
	}
	if cfg.Dir != "" {
		found, err := DiscoverRuns(cfg.Dir)
		if err != nil {
			return nil, err
		}
		runs = append(runs, found...)
	}
	return dedupeRuns(runs)
}

// LoadRunsArg interprets a --runs argument: a directory, a YAML run list,
// or a single recommendation file.
func LoadRunsArg(arg string) ([]Run, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	if info.IsDir() {
		return DiscoverRuns(arg)
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yml", ".yaml":
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read runs file: %w", err)
		}
		return ParseRuns(data, filepath.Dir(arg))
	default:
		return []Run{{Name: RunName(arg), Path: arg}}, nil
	}
}

// RunName derives a run name from a recommendation file path.
func RunName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func normalizeRuns(runs []Run, baseDir string) ([]Run, error) {
	for i := range runs {
		if runs[i].Path == "" {
			return nil, fmt.Errorf("run #%d: path is required", i+1)
		}
		if baseDir != "" && !filepath.IsAbs(runs[i].Path) {
			runs[i].Path = filepath.Join(baseDir, runs[i].Path)
		}
		if runs[i].Name == "" {
			runs[i].Name = RunName(runs[i].Path)
		}
	}
	return dedupeRuns(runs)
}

func dedupeRuns(runs []Run) ([]Run, error) {
	seen := make(map[string]string, len(runs))
	out := runs[:0]
	for _, r := range runs {
		if prev, ok := seen[r.Name]; ok {
			if prev == r.Path {
				continue
			}
			return nil, fmt.Errorf("run name %q used for both %s and %s", r.Name, prev, r.Path)
		}
		seen[r.Name] = r.Path
		out = append(out, r)
	}
	return out, nil
}
