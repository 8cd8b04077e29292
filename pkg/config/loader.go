package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

type configFile struct {
	path   string
	parser koanf.Parser
}

// extensions, in discovery order within each config dir.
var extensions = []string{".yaml", ".yml", ".json", ".toml"}

func parserForExt(ext string) koanf.Parser { //nolint:ireturn
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

// discoverConfigFiles walks the configured dirs looking for <ConfigName><ext>.
// Every file found is loaded; later files override earlier ones key by key.
func (m *Module) discoverConfigFiles() []configFile {
	var files []configFile

	for _, dir := range m.config.ConfigDirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, m.config.ConfigName+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}

			files = append(files, configFile{
				path:   path,
				parser: parserForExt(ext),
			})
		}
	}

	return files
}

func (m *Module) loadConfigFiles(k *koanf.Koanf) error {
	m.configFiles = m.discoverConfigFiles()

	for _, cf := range m.configFiles {
		if err := k.Load(file.Provider(cf.path), cf.parser); err != nil {
			return oops.With("path", cf.path).Wrapf(err, "failed to load config file")
		}
	}

	return nil
}
