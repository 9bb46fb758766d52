package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

type envOverride struct {
	path  string
	value string
}

// envKeys maps environment variables onto configuration keys.
var envKeys = []struct{ env, path string }{
	{"NYC_LOG_LEVEL", "log.level"},
	{"NYC_PG_HOST", "tracking.postgres.host"},
	{"NYC_PG_PORT", "tracking.postgres.port"},
	{"NYC_PG_USER", "tracking.postgres.user"},
	{"NYC_PG_PASSWORD", "tracking.postgres.password"},
	{"NYC_PG_DB", "tracking.postgres.name"},
	{"NYC_PG_SSLMODE", "tracking.postgres.sslmode"},
	{"NYC_MINIO_ENDPOINT", "tracking.minio.endpoint"},
	{"NYC_MINIO_ACCESS_KEY", "tracking.minio.access_key"},
	{"NYC_MINIO_SECRET_KEY", "tracking.minio.secret_key"},
	{"NYC_MINIO_BUCKET", "tracking.minio.bucket"},
	{"NYC_MINIO_USE_SSL", "tracking.minio.use_ssl"},
	{"NYC_TRACKING_DIR", "tracking.dir"},
}

func envOverrides() []envOverride {
	var out []envOverride
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k.env); ok && v != "" {
			out = append(out, envOverride{path: k.path, value: v})
		}
	}
	return out
}

// ApplyOverride sets "dotted.key=value" on a YAML document. The value is parsed
// as YAML, so numbers, booleans and flow lists keep their types.
func ApplyOverride(doc *yaml.Node, override string) error {
	key, raw, ok := strings.Cut(override, "=")
	if !ok || key == "" {
		return errors.NewValidationError("override", "must look like key=value", override)
	}
	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ""}
	if raw != "" {
		var parsed yaml.Node
		if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
			return errors.Wrapf(err, "parse override %s", override)
		}
		if len(parsed.Content) > 0 {
			value = parsed.Content[0]
		}
	}
	return setPath(doc, key, value)
}

func setPath(doc *yaml.Node, path string, value *yaml.Node) error {
	node := doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			node.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
		}
		node = node.Content[0]
	}
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if part == "" {
			return errors.NewValidationError("override", "empty key segment", path)
		}
		if node.Kind != yaml.MappingNode {
			return errors.NewValidationError("override", strings.Join(parts[:i], ".")+" is not a mapping", path)
		}
		var child *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == part {
				child = node.Content[j+1]
				if i == len(parts)-1 {
					node.Content[j+1] = value
				}
				break
			}
		}
		if child == nil {
			if i == len(parts)-1 {
				child = value
			} else {
				child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: part}, child)
		}
		node = child
	}
	return nil
}
