package format

import (
	"encoding/json"

	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatMatrix(rows []policy.MatrixRow) (string, error) {
	return marshalJSON(rows)
}

func (f *JSONFormatter) FormatReport(report store.Report) (string, error) {
	return marshalJSON(report)
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
