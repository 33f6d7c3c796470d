package store

func (s *Session) clone() Session {
	out := *s
	out.Metadata = copyMap(s.Metadata)
	out.Messages = append([]Message(nil), s.Messages...)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out
}

func (j *Job) clone() Job {
	out := *j
	out.Approvals = copyApprovals(j.Approvals)
	if j.Report != nil {
		r := j.Report.clone()
		out.Report = &r
	}
	return out
}

func (r Report) clone() Report {
	out := r
	out.Diagnostics = append([]ToolResult(nil), r.Diagnostics...)
	if out.Diagnostics == nil {
		out.Diagnostics = []ToolResult{}
	}
	out.Approvals = copyApprovals(r.Approvals)
	return out
}

func copyApprovals(in []Approval) []Approval {
	out := make([]Approval, len(in))
	copy(out, in)
	return out
}

// copyMap deep-copies JSON-shaped values. Other value types are copied by assignment.
func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
