package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
)

// CSVHeader is the fixed column order of the estimate file.
var CSVHeader = []string{
	"ScopeId",
	"EnvironmentName",
	"ResourcesCount",
	"BillableUnits",
	"PlanName",
	"EnvironmentType",
	"RecommendedSubPlan",
	"ExcludableResources",
}

// ExportRepositoryImpl implementa o ExportRepository.
type ExportRepositoryImpl struct{}

// NewExportRepository cria uma nova implementação do ExportRepository.
func NewExportRepository() repository.ExportRepository {
	return &ExportRepositoryImpl{}
}

func (r *ExportRepositoryImpl) ExportToCSV(items []entity.PlanLineItem, filename, outputDir string) (string, error) {
	outputFilename, err := generateFilename(filename, outputDir, "csv")
	if err != nil {
		return "", err
	}

	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, items); err != nil {
		return "", err
	}
	return filepath.Abs(outputFilename)
}

// WriteCSV writes the header and one record per line item. EnvironmentName is
// always empty.
func WriteCSV(w io.Writer, items []entity.PlanLineItem) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.ScopeID,
			"",
			strconv.Itoa(item.ResourcesCount),
			formatUnits(item),
			string(item.PlanName),
			string(item.EnvironmentType),
			item.RecommendedSubPlan,
			strconv.Itoa(item.ExcludableResources),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("error writing CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatUnits trims trailing zeros: 730, 4, 3.5.
func formatUnits(item entity.PlanLineItem) string {
	return item.BillableUnits.Round(4).String()
}

func (r *ExportRepositoryImpl) ExportToJSON(report entity.Report, filename, outputDir string) (string, error) {
	outputFilename, err := generateFilename(filename, outputDir, "json")
	if err != nil {
		return "", err
	}

	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("error encoding JSON data: %w", err)
	}

	return filepath.Abs(outputFilename)
}

func (r *ExportRepositoryImpl) ExportToPDF(report entity.Report, filename, outputDir string) (string, error) {
	outputFilename, err := generateFilename(filename, outputDir, "pdf")
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	headerColor := [3]int{40, 40, 40}
	headerTextColor := [3]int{255, 255, 255}
	sectionTitleColor := [3]int{0, 0, 0}
	bodyTextColor := [3]int{50, 50, 50}
	lineColor := [3]int{200, 200, 200}

	drawSection := func(title string, content string) {
		if content == "" {
			return
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(sectionTitleColor[0], sectionTitleColor[1], sectionTitleColor[2])
		pdf.Cell(0, 8, title)
		pdf.Ln(7)

		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
		pdf.Ln(4)

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		pdf.MultiCell(190, 5, tr(content), "", "L", false)
		pdf.Ln(8)
	}

	itemsByScope := make(map[string][]entity.PlanLineItem)
	for _, item := range report.LineItems {
		itemsByScope[item.ScopeID] = append(itemsByScope[item.ScopeID], item)
	}

	for i, res := range report.Scopes {
		pdf.AddPage()

		pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
		pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
		pdf.SetFont("Arial", "B", 14)
		scopeName := res.Scope.Label()
		if len(scopeName) > 80 {
			scopeName = scopeName[:77] + "..."
		}
		pdf.CellFormat(0, 12, tr(fmt.Sprintf("  %s", scopeName)), "", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("  %s scope %s  |  %d partition(s)  |  %s",
			res.EnvironmentType, res.Scope.ID, res.Partitions, res.Elapsed.Round(time.Millisecond))), "", 1, "L", true, 0, "")
		pdf.Ln(10)

		if !res.Success {
			drawSection("Skipped", cleanRichTags(res.Error))
		} else {
			items := itemsByScope[res.Scope.ID]
			if len(items) > 0 {
				pdf.SetFont("Arial", "B", 12)
				pdf.SetTextColor(sectionTitleColor[0], sectionTitleColor[1], sectionTitleColor[2])
				pdf.Cell(0, 8, "Plans")
				pdf.Ln(9)

				widths := []float64{55, 30, 35, 40, 30}
				pdf.SetFont("Arial", "B", 10)
				pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
				for j, h := range []string{"Plan", "Resources", "Billable Units", "Sub Plan", "Excludable"} {
					pdf.CellFormat(widths[j], 7, h, "B", 0, "L", false, 0, "")
				}
				pdf.Ln(-1)

				pdf.SetFont("Arial", "", 10)
				for _, item := range items {
					pdf.CellFormat(widths[0], 6, tr(string(item.PlanName)), "", 0, "L", false, 0, "")
					pdf.CellFormat(widths[1], 6, strconv.Itoa(item.ResourcesCount), "", 0, "L", false, 0, "")
					pdf.CellFormat(widths[2], 6, formatUnits(item), "", 0, "L", false, 0, "")
					pdf.CellFormat(widths[3], 6, tr(item.RecommendedSubPlan), "", 0, "L", false, 0, "")
					pdf.CellFormat(widths[4], 6, strconv.Itoa(item.ExcludableResources), "", 1, "L", false, 0, "")
				}
				pdf.Ln(8)
			}

			var counts []string
			for _, c := range res.Counts.Categories() {
				counts = append(counts, fmt.Sprintf("%s: %d", c, res.Counts.Get(c)))
			}
			counts = append(counts, fmt.Sprintf("container cores: %s", res.CoreEstimate.StringFixed(2)))
			drawSection("Inventory", strings.Join(counts, "\n"))
			drawSection("Degraded", strings.Join(res.Degraded, "\n"))
		}

		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		footerText := fmt.Sprintf("Generated by Cloud Plan Estimator | %s", report.GeneratedAt.Format("2006-01-02"))
		pdf.CellFormat(0, 10, tr(footerText), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Page %d", i+1)), "", 0, "R", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(outputFilename); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}

	return filepath.Abs(outputFilename)
}

// generateFilename cria um nome de arquivo único com timestamp e garante que o diretório exista.
func generateFilename(base, dir, ext string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", base, timestamp, ext)
	return filepath.Join(dir, filename), nil
}

// Regex para limpar formatação pterm (rich tags) e sequências ANSI de cor/estilo.
var richTagRegex = regexp.MustCompile(`\[/?([a-zA-Z]+|#[0-9a-fA-F]{6})\]`)
var ansiRegex = regexp.MustCompile(`\x1B\[[0-9;]*[A-Za-z]`)

// cleanRichTags remove tags de formatação do pterm e sequências ANSI.
func cleanRichTags(text string) string {
	text = richTagRegex.ReplaceAllString(text, "")
	text = ansiRegex.ReplaceAllString(text, "")
	return text
}
