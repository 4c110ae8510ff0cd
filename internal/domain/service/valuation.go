package service

import (
	"io"

	"FinValue/internal/domain/models"
)

// ReportRenderer formats finished reports for people.
type ReportRenderer interface {
	RenderComps(w io.Writer, r *models.CompsReport) error
	RenderDCF(w io.Writer, r *models.DCFReport) error
}

// ReportExporter writes reports as spreadsheets.
type ReportExporter interface {
	ExportComps(w io.Writer, r *models.CompsReport) error
	ExportDCF(w io.Writer, r *models.DCFReport) error
}
