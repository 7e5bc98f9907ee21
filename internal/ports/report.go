package ports

import "autobuild/internal/types"

type ReportWriterPort interface {
	Write(path string, report types.Report) error
}
