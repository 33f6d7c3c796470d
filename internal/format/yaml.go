package format

import (
	"encoding/json"
	"strings"

	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter reuses the JSON field names so both outputs share one schema.
type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatMatrix(rows []policy.MatrixRow) (string, error) {
	return marshalYAML(rows)
}

func (f *YAMLFormatter) FormatReport(report store.Report) (string, error) {
	return marshalYAML(report)
}

func marshalYAML(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
