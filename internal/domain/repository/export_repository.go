package repository

import (
	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

type ExportRepository interface {
	ExportToCSV(items []entity.PlanLineItem, filename string, outputDir string) (string, error)
	ExportToJSON(report entity.Report, filename string, outputDir string) (string, error)
	ExportToPDF(report entity.Report, filename string, outputDir string) (string, error)
}
