// Package report exports terminal job reports to disk.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/natefinch/atomic"
)

var safeID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileSink writes each report to <dir>/<job_id>.json, replacing any earlier
// file atomically.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.Configuration("reports.dir is required for the file sink")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCategory(err, "create reports directory", errors.ErrConfiguration)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *FileSink) Export(ctx context.Context, r store.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !safeID.MatchString(r.JobID) {
		return errors.InvalidInput(fmt.Sprintf("unsafe job id for report file: %q", r.JobID))
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(s.Path(r.JobID), bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "write report")
	}
	return nil
}
