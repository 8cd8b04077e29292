// Package manifest provides a module source driven by a declarative manifest
// file. The manifest describes a tree of modules with per-module factory names
// and priorities; factories themselves are registered in code. YAML, JSON and
// TOML manifests are supported.
package manifest

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

var _ source.Source = (*Source)(nil)

// nodeSpec is one manifest entry, decoded from the raw manifest map.
type nodeSpec struct {
	Factory  string         `mapstructure:"factory"`
	Priority *int           `mapstructure:"priority"`
	Modules  map[string]any `mapstructure:"modules"`
}

// Source resolves modules declared in a manifest file. Resolution results are
// cached, and concurrent resolutions of the same node (the tolerant priority
// probe racing the authoritative admission pass) share one factory invocation.
type Source struct {
	factories *Factories
	root      map[string]any

	group    singleflight.Group
	mu       sync.RWMutex
	resolved map[string]any
}

// Load reads the manifest at path, picking the parser from the file extension,
// and returns a source backed by it.
func Load(path string, factories *Factories) (*Source, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, oops.With("path", path).Wrapf(err, "failed to load manifest")
	}

	return FromKoanf(k, factories)
}

// FromKoanf builds a source from an already-loaded koanf instance holding a
// top-level "modules" map.
func FromKoanf(k *koanf.Koanf, factories *Factories) (*Source, error) {
	raw, ok := k.Get("modules").(map[string]any)
	if !ok {
		return nil, oops.Errorf("manifest has no top-level modules map")
	}

	return &Source{
		factories: factories,
		root:      raw,
		resolved:  make(map[string]any),
	}, nil
}

func parserFor(path string) (koanf.Parser, error) { //nolint:ireturn
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, oops.With("path", path).Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
}

// Children returns the nodes under root. Sibling order is lexical by name,
// since manifest maps carry no order of their own.
func (s *Source) Children(_ context.Context, root string, recursive bool) ([]source.Node, error) {
	level, err := s.descend(root)
	if err != nil {
		return nil, err
	}

	var nodes []source.Node
	collect(level, root, recursive, &nodes)
	return nodes, nil
}

func collect(level map[string]any, prefix string, recursive bool, out *[]source.Node) {
	names := make([]string, 0, len(level))
	for name := range level {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}

		*out = append(*out, source.Node{Path: path})

		if !recursive {
			continue
		}
		if spec, err := decodeSpec(level[name]); err == nil && len(spec.Modules) > 0 {
			collect(spec.Modules, path, recursive, out)
		}
	}
}

// descend walks the manifest tree down to the given slash-separated root and
// returns the modules map at that level.
func (s *Source) descend(root string) (map[string]any, error) {
	level := s.root
	if root == "" {
		return level, nil
	}

	for _, segment := range strings.Split(root, "/") {
		spec, err := decodeSpec(level[segment])
		if err != nil {
			return nil, oops.With("root", root).Wrapf(err, "invalid manifest entry %q", segment)
		}
		level = spec.Modules
	}

	return level, nil
}

func (s *Source) spec(path string) (*nodeSpec, error) {
	level := s.root
	segments := strings.Split(path, "/")

	for i, segment := range segments {
		raw, ok := level[segment]
		if !ok {
			return nil, oops.With("path", path).Errorf("no manifest entry at %q", path)
		}

		spec, err := decodeSpec(raw)
		if err != nil {
			return nil, oops.With("path", path).Wrapf(err, "invalid manifest entry %q", segment)
		}

		if i == len(segments)-1 {
			return spec, nil
		}
		level = spec.Modules
	}

	return nil, oops.With("path", path).Errorf("no manifest entry at %q", path)
}

func decodeSpec(raw any) (*nodeSpec, error) {
	spec := &nodeSpec{}
	if raw == nil {
		return spec, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           spec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to build manifest decoder")
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, oops.Wrapf(err, "failed to decode manifest entry")
	}

	return spec, nil
}

// IsModule reports whether the node declares a factory. Entries without one
// are grouping nodes that only carry children.
func (s *Source) IsModule(_ context.Context, node source.Node) bool {
	spec, err := s.spec(node.Path)
	return err == nil && spec.Factory != ""
}

// Resolve builds the node's module through its registered factory and probes
// the handle. A manifest-declared priority overrides whatever the module value
// itself declares.
func (s *Source) Resolve(ctx context.Context, node source.Node, stages []string) (*ostiary.Handle, error) {
	spec, err := s.spec(node.Path)
	if err != nil {
		return nil, err
	}

	if spec.Factory == "" {
		return nil, oops.With("path", node.Path).Errorf("manifest entry %q declares no factory", node.Path)
	}

	value, err := s.build(ctx, node.Path, spec.Factory)
	if err != nil {
		return nil, err
	}

	var options []ostiary.HandleOption
	if spec.Priority != nil {
		options = append(options, ostiary.WithPriority(*spec.Priority))
	}

	return ostiary.NewHandle(node.Name(), value, stages, options...), nil
}

func (s *Source) build(ctx context.Context, path string, factoryName string) (any, error) {
	s.mu.RLock()
	value, ok := s.resolved[path]
	s.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err, _ := s.group.Do(path, func() (any, error) {
		factory, ok := s.factories.Get(factoryName)
		if !ok {
			return nil, oops.
				With("path", path).
				With("factory", factoryName).
				Errorf("no factory registered under %q", factoryName)
		}

		built, err := factory(ctx)
		if err != nil {
			return nil, oops.
				With("path", path).
				With("factory", factoryName).
				Wrapf(err, "factory %q failed", factoryName)
		}

		s.mu.Lock()
		s.resolved[path] = built
		s.mu.Unlock()

		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}
