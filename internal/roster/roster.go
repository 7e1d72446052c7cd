package roster

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed avatars.yaml
var defaultFiles embed.FS

const defaultController = "ai"

// Roster is the fixed avatar pool automated seats are dressed from. Embedded
// defaults load first; YAML files in an override directory replace whole tiers.
type Roster struct {
	mu         sync.RWMutex
	controller string
	tiers      map[string][]string
}

type fileFormat struct {
	Controller string              `yaml:"controller"`
	Tiers      map[string][]string `yaml:"tiers"`
}

func New(overrideDir string) (*Roster, error) {
	r := &Roster{controller: defaultController, tiers: make(map[string][]string)}
	raw, err := fs.ReadFile(defaultFiles, "avatars.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded roster: %w", err)
	}
	if err := r.applyYAML(raw); err != nil {
		return nil, fmt.Errorf("parse embedded roster: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := r.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Roster) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read roster dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := r.applyYAML(b); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return nil
}

func (r *Roster) applyYAML(b []byte) error {
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := strings.TrimSpace(f.Controller); c != "" {
		r.controller = c
	}
	for tier, avatars := range f.Tiers {
		clean := make([]string, 0, len(avatars))
		for _, a := range avatars {
			if a = strings.TrimSpace(a); a != "" {
				clean = append(clean, a)
			}
		}
		if len(clean) == 0 {
			return fmt.Errorf("tier %q has no avatars", tier)
		}
		r.tiers[strings.ToLower(strings.TrimSpace(tier))] = clean
	}
	return nil
}

// Pick returns the avatar and controller label for an automated seat. The
// choice is deterministic: the first avatar listed for the tier.
func (r *Roster) Pick(tier string) (avatar, controller string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool := r.tiers[strings.ToLower(strings.TrimSpace(tier))]
	if len(pool) == 0 {
		return "robot", r.controller
	}
	return pool[0], r.controller
}

// Avatars lists the pool for a tier.
func (r *Roster) Avatars(tier string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.tiers[strings.ToLower(strings.TrimSpace(tier))]...)
}
