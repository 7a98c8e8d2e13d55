package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Registry holds templates by key, along with their cached parameterized
// forms. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	templates map[string]Template
	params    map[string]ParameterizedTemplate
	// sources maps a file to the keys it defined, so a deleted or rewritten
	// file drops the templates it no longer holds.
	sources map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		templates: make(map[string]Template),
		params:    make(map[string]ParameterizedTemplate),
		sources:   make(map[string][]string),
	}
}

// Put adds or replaces a template, discarding any cached parameterization.
func (r *Registry) Put(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Key] = t.Clone()
	delete(r.params, t.Key)
}

// Get returns the template stored under key.
func (r *Registry) Get(key string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[key]
	if !ok {
		return Template{}, false
	}
	return t.Clone(), true
}

// Keys returns every template key, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Remove drops key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, key)
	delete(r.params, key)
}

// Parameterized returns the parameterized form of key, deriving and caching it
// on first use. A form set by SetParameterized (learned ranges) wins until the
// template itself is replaced.
func (r *Registry) Parameterized(key string) (ParameterizedTemplate, bool) {
	r.mu.RLock()
	pt, ok := r.params[key]
	r.mu.RUnlock()
	if ok {
		return pt.Clone(), true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pt, ok := r.params[key]; ok {
		return pt.Clone(), true
	}
	t, ok := r.templates[key]
	if !ok {
		return ParameterizedTemplate{}, false
	}
	pt = Parameterize(t)
	r.params[key] = pt
	return pt.Clone(), true
}

// SetParameterized replaces the cached parameterized form of an existing
// template. It reports false when the key is unknown.
func (r *Registry) SetParameterized(pt ParameterizedTemplate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[pt.Key]; !ok {
		return false
	}
	r.params[pt.Key] = pt.Clone()
	return true
}

// Extensions recognized by LoadDir.
var templateExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// IsTemplateFile reports whether path has a template file extension.
func IsTemplateFile(path string) bool {
	return templateExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadFile reads a template file (a single template or a list) and stores its
// templates, replacing whatever the file defined before. It returns the keys
// loaded.
func (r *Registry) LoadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}
	ts, err := Decode(path, b)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(ts))
	for i, t := range ts {
		if strings.TrimSpace(t.Key) == "" {
			return nil, fmt.Errorf("template %d in %s: missing key", i, path)
		}
		keys = append(keys, t.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgetLocked(path, keys)
	for _, t := range ts {
		r.templates[t.Key] = t
		delete(r.params, t.Key)
	}
	r.sources[path] = keys
	return keys, nil
}

// Forget drops every template loaded from path.
func (r *Registry) Forget(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forgetLocked(path, nil)
}

// forgetLocked drops the keys path previously defined, except those in keep.
func (r *Registry) forgetLocked(path string, keep []string) []string {
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	var dropped []string
	for _, k := range r.sources[path] {
		if kept[k] {
			continue
		}
		delete(r.templates, k)
		delete(r.params, k)
		dropped = append(dropped, k)
	}
	delete(r.sources, path)
	return dropped
}

// LoadDir loads every template file directly under dir. Files that fail to
// parse are logged and skipped; a missing directory loads nothing.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		r.logger.Debug("template directory missing", zap.String("dir", dir))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing templates: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsTemplateFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		keys, err := r.LoadFile(path)
		if err != nil {
			r.logger.Warn("skipping template file", zap.String("path", path), zap.Error(err))
			continue
		}
		n += len(keys)
	}
	r.logger.Info("loaded templates", zap.String("dir", dir), zap.Int("count", n))
	return n, nil
}

// Decode parses template file contents. The format follows the extension of
// name (YAML for .yaml and .yml, JSON otherwise); the document may hold one
// template or a list.
func Decode(name string, b []byte) ([]Template, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".yaml" || ext == ".yml" {
		return decodeYAML(name, b)
	}
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var ts []Template
		if err := json.Unmarshal(b, &ts); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return ts, nil
	}
	var t Template
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return []Template{t}, nil
}

func decodeYAML(name string, b []byte) ([]Template, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	doc := node.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var ts []Template
		if err := doc.Decode(&ts); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return ts, nil
	}
	var t Template
	if err := doc.Decode(&t); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return []Template{t}, nil
}
