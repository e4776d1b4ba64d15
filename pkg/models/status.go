package models

// ImageStatus represents the localization status of an image URL in the ledger
type ImageStatus string

const (
	ImageStatusUnset    ImageStatus = ""          // Zero value = unset/unknown
	ImageStatusSuccess  ImageStatus = "success"   // Downloaded (and converted if needed)
	ImageStatusFailure  ImageStatus = "failure"   // Download or conversion failed
	ImageStatusNotFound ImageStatus = "not_found" // URL not in ledger
	ImageStatusDBError  ImageStatus = "db_error"  // Ledger read failed
)

// String implements fmt.Stringer for logging
func (s ImageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a value that can be stored
func (s ImageStatus) IsValid() bool {
	switch s {
	case ImageStatusSuccess, ImageStatusFailure:
		return true
	}
	return false
}

// DocumentStatus represents the rewrite status of a document in the ledger
type DocumentStatus string

const (
	DocumentStatusUnset    DocumentStatus = ""
	DocumentStatusSuccess  DocumentStatus = "success" // Written back (possibly with failed references)
	DocumentStatusFailure  DocumentStatus = "failure" // Read or write of the document failed
	DocumentStatusNotFound DocumentStatus = "not_found"
	DocumentStatusDBError  DocumentStatus = "db_error"
)

// String implements fmt.Stringer for logging
func (s DocumentStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a value that can be stored
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusSuccess, DocumentStatusFailure:
		return true
	}
	return false
}
