package reports

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

// WriteExcel streams rows as an xlsx attachment. The column letters
// follow the heading order, so headings and GetCellValues must agree.
func WriteExcel(w http.ResponseWriter, filename string, rows []ExcelExporter, headings ...string) error {

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	rowNo := 2
	for _, row := range rows {
		col := 'A'
		for _, value := range row.GetCellValues() {
			f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value)
			col++
		}
		rowNo++
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	return f.Write(w)
}
