package scm

import "gopkg.in/yaml.v3"

// ExportConfigYAML renders the repo's config section as YAML, the interop
// form the DOMAIN STACK section adds on top of spec §6's required JSON
// persistence. It is a Go API only: the git builtin has no `config`
// subcommand.
func (r *Repo) ExportConfigYAML() ([]byte, error) {
	return yaml.Marshal(r.Config)
}

// ImportConfigYAML replaces the repo's config from a human-edited YAML
// document, then the caller is responsible for calling Save to persist it
// back into the canonical JSON document.
func (r *Repo) ImportConfigYAML(data []byte) error {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}
