package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ManifestMetadata names a manifest and carries operator-supplied
// labels, mirroring the teacher's cluster resource envelope.
type ManifestMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Manifest is the generic apiVersion/kind/metadata/spec envelope
// estorectl apply parses. Spec is left untyped at this layer and
// resolved per Kind, the same dispatch apply.go uses for its own
// resource kinds.
type Manifest struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   ManifestMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

// KindIndexBuildJob is the only manifest kind estorectl currently
// understands: a request to backfill one or more indexes on an entity
// type via pkg/indexbuilder.
const KindIndexBuildJob = "IndexBuildJob"

// ParseManifest unmarshals a single YAML manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parsing manifest: %w", err)
	}
	if m.Kind == "" {
		return nil, fmt.Errorf("config: manifest missing kind")
	}
	if m.Metadata.Name == "" {
		return nil, fmt.Errorf("config: manifest missing metadata.name")
	}
	return &m, nil
}

// IndexBuildJob is the resolved spec of an IndexBuildJob manifest: which
// entity type and indexes to backfill, and any per-job overrides of the
// store's default builder settings.
type IndexBuildJob struct {
	Name       string
	EntityType string
	Indexes    []string
	BatchSize  int
	ClearFirst bool
}

// BuildJob resolves m's spec into an IndexBuildJob, validating the
// fields indexbuilder.Builder.Start needs. Returns an error if m is not
// a KindIndexBuildJob manifest.
func (m *Manifest) BuildJob() (IndexBuildJob, error) {
	if m.Kind != KindIndexBuildJob {
		return IndexBuildJob{}, fmt.Errorf("config: manifest %q has kind %q, want %q", m.Metadata.Name, m.Kind, KindIndexBuildJob)
	}

	job := IndexBuildJob{
		Name:       m.Metadata.Name,
		EntityType: getString(m.Spec, "entityType", ""),
		Indexes:    getStringSlice(m.Spec, "indexes"),
		BatchSize:  getInt(m.Spec, "batchSize", 0),
		ClearFirst: getBool(m.Spec, "clearFirst", false),
	}
	if job.EntityType == "" {
		return job, fmt.Errorf("config: manifest %q: spec.entityType is required", m.Metadata.Name)
	}
	if len(job.Indexes) == 0 {
		return job, fmt.Errorf("config: manifest %q: spec.indexes must name at least one index", m.Metadata.Name)
	}
	return job, nil
}

// getString extracts a string value from a manifest spec map, returning
// def if the key is absent or not a string.
func getString(spec map[string]interface{}, key, def string) string {
	if v, ok := spec[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// getInt extracts an integer value from a manifest spec map. yaml.v3
// decodes unsuffixed numeric scalars as int, so that is the only
// concrete type handled beyond the float64 a caller-constructed map
// might use.
func getInt(spec map[string]interface{}, key string, def int) int {
	switch v := spec[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// getBool extracts a boolean value from a manifest spec map.
func getBool(spec map[string]interface{}, key string, def bool) bool {
	if v, ok := spec[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// getStringSlice extracts a string list from a manifest spec map,
// accepting the []interface{} shape yaml.v3 produces for a YAML
// sequence.
func getStringSlice(spec map[string]interface{}, key string) []string {
	v, ok := spec[key]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
