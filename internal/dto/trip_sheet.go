package dto

// TripSheetFormat selects the export encoding.
type TripSheetFormat string

const (
	TripSheetCSV TripSheetFormat = "csv"
	TripSheetPDF TripSheetFormat = "pdf"
)

// TripSheet is a rendered export ready to stream.
type TripSheet struct {
	Filename    string
	ContentType string
	Body        []byte
}
