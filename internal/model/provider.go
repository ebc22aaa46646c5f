package model

// ProviderRecord is one blacklist provider found on the aggregator's result page.
//
// A record is created by the extractor, one per table cell that contained
// an image, and its Status is written exactly once by the classification step.
// Records are kept in document order.
type ProviderRecord struct {
	// Name is the provider name taken from the link text in the cell.
	// It is empty when the cell had an image but no link text.
	Name string `json:"name"`

	// ImageURL is the absolute URL of the provider's status image.
	// It is the key that ties fetch results back to the record.
	ImageURL string `json:"image_url"`

	// Status is the classification of the status image.
	Status Status `json:"status"`

	// Digest is the hex SHA-1 digest of the fetched image, if it was fetched.
	Digest string `json:"digest,omitempty"`

	// FetchError holds the reason the image could not be fetched.
	// A record with a FetchError always has StatusUnknown.
	FetchError string `json:"fetch_error,omitempty"`

	// Ignored is true when the provider is in the ignore set and
	// therefore cannot affect the verdict.
	Ignored bool `json:"ignored,omitempty"`
}

// IsClean reports whether the provider showed the clean image.
func (r ProviderRecord) IsClean() bool {
	return r.Status == StatusClean
}

// Fails reports whether this record makes the verdict fail:
// its status is anything other than clean and it is not ignored.
func (r ProviderRecord) Fails() bool {
	return !r.IsClean() && !r.Ignored
}

// ParseDiagnostics describes how the result page was parsed.
//
// The extractor never fails on malformed markup. Instead it counts
// what it saw so that a drop between CellsSeen and RecordsEmitted,
// or a non-zero Anomalies counter, can be reported to the user.
type ParseDiagnostics struct {
	// TablesSeen counts tables that matched the expected class marker.
	TablesSeen int `json:"tables_seen"`

	// CellsSeen counts cells opened inside a tracked table.
	CellsSeen int `json:"cells_seen"`

	// RecordsEmitted counts provider records produced.
	RecordsEmitted int `json:"records_emitted"`

	// CellsWithoutImage counts cells closed without an image reference.
	CellsWithoutImage int `json:"cells_without_image"`

	// Anomalies counts unbalanced tag sequences, such as a cell opened
	// inside another cell or input ending inside the tracked table.
	Anomalies int `json:"anomalies"`
}

// HasAnomalies reports whether any structural anomaly was observed.
func (d ParseDiagnostics) HasAnomalies() bool {
	return d.Anomalies > 0
}
