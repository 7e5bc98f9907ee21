package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

type ReportFileAdapter struct{}

func NewReportFileAdapter() ReportFileAdapter {
	return ReportFileAdapter{}
}

func (a ReportFileAdapter) Write(path string, report types.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create report directory").
				WithCause(err)
		}
	}
	data, err := yaml.Marshal(normalizeReport(report))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode report").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write report").
			WithCause(err)
	}
	return nil
}

// normalizeReport replaces nil lists so they encode as [] instead of null.
func normalizeReport(report types.Report) types.Report {
	c := &report.Classification
	if c.Done == nil {
		c.Done = []types.QueueEntry{}
	}
	if c.Skipped == nil {
		c.Skipped = []types.SkippedEntry{}
	}
	if c.Todo == nil {
		c.Todo = []types.QueueEntry{}
	}
	if report.Run != nil {
		run := *report.Run
		for _, list := range []*[]string{&run.Built, &run.Failed, &run.MissingDeps, &run.Remaining} {
			if *list == nil {
				*list = []string{}
			}
		}
		report.Run = &run
	}
	return report
}

var _ ports.ReportWriterPort = ReportFileAdapter{}
