package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentfiles_uploads_total",
		Help: "Uploaded files by outcome.",
	}, []string{"outcome"})

	MirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentfiles_mirror_failures_total",
		Help: "Best-effort mirror failures by target.",
	}, []string{"target"})

	ExcelRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentfiles_excel_rows_total",
		Help: "Spreadsheet rows processed by outcome.",
	}, []string{"outcome"})

	FolderProvisioning = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentfiles_folder_provisioning_total",
		Help: "Student folder provisioning results by outcome and credential strategy.",
	}, []string{"outcome", "strategy"})

	ParentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentfiles_parent_verifications_total",
		Help: "Parent portal verification attempts by result.",
	}, []string{"result"})

	FilesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studentfiles_files_purged_total",
		Help: "Tombstoned files whose bytes were reclaimed.",
	})
)
