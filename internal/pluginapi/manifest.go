package pluginapi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// maxManifestSize guards against oversized/malicious manifest files, the
// same protection the teacher's YAML config parsers apply before
// unmarshalling (internal/infrastructure/routing.Parser's MaxConfigSize).
const maxManifestSize = 1 << 20 // 1 MiB

// Manifest describes one installed plugin on disk, read from a
// manifest.yaml under PLUGINS_PATH/<plugin>/.
type Manifest struct {
	Name         string              `yaml:"name" validate:"required,alphanum_hyphen"`
	Version      string              `yaml:"version" validate:"required"`
	Description  string              `yaml:"description"`
	Capabilities []ManifestCapability `yaml:"capabilities" validate:"required,dive"`
}

// ManifestCapability is one trigger or action entry in a Manifest.
type ManifestCapability struct {
	Kind        string `yaml:"kind" validate:"required,oneof=trigger action"`
	Key         string `yaml:"key" validate:"required"`
	DisplayName string `yaml:"displayName"`
}

var manifestValidator = newManifestValidator()

func newManifestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("alphanum_hyphen", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return false
			}
		}
		return true
	})
	return v
}

// LoadManifests reads every <pluginsPath>/*/manifest.yaml, validating
// each against the Manifest schema. A malformed manifest aborts loading
// entirely: a plugin host should never start with a partially-loaded
// capability set.
func LoadManifests(pluginsPath string) ([]Manifest, error) {
	if pluginsPath == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(pluginsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pluginapi: read plugins path %q: %w", pluginsPath, err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(pluginsPath, entry.Name(), "manifest.yaml")
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("pluginapi: stat %s: %w", path, err)
		}
		if info.Size() > maxManifestSize {
			return nil, fmt.Errorf("pluginapi: manifest %s exceeds max size of %d bytes", path, maxManifestSize)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("pluginapi: read %s: %w", path, err)
		}

		var m Manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("pluginapi: parse %s: %w", path, err)
		}
		if err := manifestValidator.Struct(m); err != nil {
			return nil, fmt.Errorf("pluginapi: validate %s: %w", path, err)
		}

		manifests = append(manifests, m)
	}

	return manifests, nil
}
