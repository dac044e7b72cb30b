package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrInvalidWorkbook = errors.New("invalid workbook")
	ErrMissingColumns  = errors.New("missing required columns")
)

type studentField int

const (
	fieldSerial studentField = iota
	fieldName
	fieldCivilID
	fieldGrade
	fieldClassNumber
	fieldSubject
)

type columnSpec struct {
	field    studentField
	required bool
	// aliases[0] is the canonical header written to the template.
	aliases []string
}

var studentColumns = []columnSpec{
	{fieldSerial, false, []string{"رقم متسلسل", "Serial Number", "Serial", "م"}},
	{fieldName, true, []string{"اسم الطالب", "Student Name", "Name", "الاسم"}},
	{fieldCivilID, true, []string{"رقم الهوية", "Civil ID", "السجل المدني", "رقم السجل المدني", "ID"}},
	{fieldGrade, true, []string{"الصف", "Grade"}},
	{fieldClassNumber, true, []string{"رقم الفصل", "Class Number", "الفصل", "Class"}},
	{fieldSubject, true, []string{"المادة", "Subject"}},
}

var headerAliases = func() map[string]studentField {
	m := make(map[string]studentField)
	for _, col := range studentColumns {
		for _, alias := range col.aliases {
			m[normalizeHeader(alias)] = col.field
		}
	}
	return m
}()

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// TemplateHeaders are the canonical column titles in sheet order.
func TemplateHeaders() []string {
	headers := make([]string, 0, len(studentColumns))
	for _, col := range studentColumns {
		headers = append(headers, col.aliases[0])
	}
	return headers
}

type ExcelImportResult struct {
	Message    string   `json:"message"`
	Added      int      `json:"added"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Total      int      `json:"total"`
	Errors     []string `json:"errors"`
}

type ExcelService struct {
	store storage.Storage
}

func NewExcelService(store storage.Storage) *ExcelService {
	return &ExcelService{store: store}
}

// ImportStudents reads the first sheet of an xlsx workbook and inserts every
// valid, previously unseen student for the teacher in a single batch.
func (s *ExcelService) ImportStudents(ctx context.Context, teacherID uint, r io.Reader) (*ExcelImportResult, error) {
	if _, err := s.store.GetTeacher(ctx, teacherID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}

	rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}
	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetCivilIDsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}

	result := &ExcelImportResult{Errors: []string{}}
	var students []models.Student

	for i, row := range rows[1:] {
		rowNumber := i + 2
		if isBlankRow(row) {
			continue
		}
		result.Total++

		student, err := parseStudentRow(row, columns)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
			utils.ExcelRows.WithLabelValues("skipped").Inc()
			continue
		}
		if seen[student.CivilID] {
			result.Duplicates++
			utils.ExcelRows.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[student.CivilID] = true

		student.TeacherID = teacherID
		student.Status = models.StatusActive
		students = append(students, *student)
	}

	if len(students) > 0 {
		if err := s.store.CreateStudentsBatch(ctx, students); err != nil {
			return nil, fmt.Errorf("insert students: %w", err)
		}
	}
	result.Added = len(students)
	utils.ExcelRows.WithLabelValues("added").Add(float64(result.Added))

	result.Message = fmt.Sprintf("تم إضافة %d طالب", result.Added)
	utils.LogInfo(fmt.Sprintf("[ExcelService] Teacher %d import: total=%d added=%d skipped=%d duplicates=%d",
		teacherID, result.Total, result.Added, result.Skipped, result.Duplicates))
	return result, nil
}

func readFirstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidWorkbook)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrInvalidWorkbook, sheets[0])
	}
	return rows, nil
}

// mapHeader resolves each known field to its column index.
func mapHeader(header []string) (map[studentField]int, error) {
	columns := make(map[studentField]int)
	for idx, cell := range header {
		field, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, dup := columns[field]; !dup {
			columns[field] = idx
		}
	}

	var missing []string
	for _, col := range studentColumns {
		if _, ok := columns[col.field]; col.required && !ok {
			missing = append(missing, col.aliases[0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseStudentRow(row []string, columns map[studentField]int) (*models.Student, error) {
	cell := func(f studentField) string {
		idx, ok := columns[f]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	name, rawCivil, grade, rawClass, subject :=
		cell(fieldName), cell(fieldCivilID), cell(fieldGrade), cell(fieldClassNumber), cell(fieldSubject)

	var missing []string
	for _, c := range []struct{ label, value string }{
		{"student name", name}, {"civil ID", rawCivil}, {"grade", grade},
		{"class number", rawClass}, {"subject", subject},
	} {
		if c.value == "" {
			missing = append(missing, c.label)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	civilID, err := utils.ValidateCivilID(rawCivil)
	if err != nil {
		return nil, err
	}
	classNumber, err := strconv.Atoi(rawClass)
	if err != nil {
		return nil, fmt.Errorf("class number %q is not an integer", rawClass)
	}

	return &models.Student{
		CivilID:     civilID,
		StudentName: name,
		Grade:       grade,
		ClassNumber: classNumber,
		Subject:     subject,
	}, nil
}

// WriteTemplate writes an empty workbook carrying the canonical headers.
func (s *ExcelService) WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "الطلاب"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	headers := TemplateHeaders()
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	rtl := true
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "F", 18); err != nil {
		return err
	}
	return f.Write(w)
}
