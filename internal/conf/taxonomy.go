package conf

import (
	"os"

	"github.com/ciscoittech/sampleagent/internal/errors"
	"gopkg.in/yaml.v3"
)

// taxonomyFile is the on-disk shape of a genre taxonomy override.
type taxonomyFile struct {
	Default string            `yaml:"default"`
	Mapping map[string]string `yaml:"mapping"`
}

// loadTaxonomyOverride merges a YAML taxonomy file over the configured
// mapping when genre.taxonomy.file is set. Rules from the file replace
// built-in rules with the same keyword; unrelated rules are kept.
func loadTaxonomyOverride(s *Settings) error {
	path := s.Genre.Taxonomy.File
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryTaxonomy).
			Context("taxonomy_file", path).
			Build()
	}

	var tf taxonomyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryTaxonomy).
			Context("taxonomy_file", path).
			Build()
	}

	if s.Genre.Taxonomy.Mapping == nil {
		s.Genre.Taxonomy.Mapping = make(map[string]string, len(tf.Mapping))
	}
	for keyword, bucket := range tf.Mapping {
		s.Genre.Taxonomy.Mapping[keyword] = bucket
	}
	if tf.Default != "" {
		s.Genre.Taxonomy.Default = tf.Default
	}

	return nil
}
