package storage

import "github.com/Sriram-PR/mdimg/pkg/models"

// ImageStore records the outcome of each image URL localization
type ImageStore interface {
	// CheckImageStatus retrieves the status and details of an image URL
	// Returns status (ImageStatusSuccess, ImageStatusFailure, ImageStatusNotFound, ImageStatusDBError),
	// the ImageDBEntry if found and parsed, and any error
	CheckImageStatus(imgURL string) (status models.ImageStatus, entry *models.ImageDBEntry, err error)

	// UpdateImageStatus updates the status and details for an image URL
	UpdateImageStatus(imgURL string, entry *models.ImageDBEntry) error
}

// DocumentStore records the outcome of each document rewrite
type DocumentStore interface {
	CheckDocumentStatus(docPath string) (status models.DocumentStatus, entry *models.DocumentDBEntry, err error)
	UpdateDocumentStatus(docPath string, entry *models.DocumentDBEntry) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetCount returns the number of keys in the ledger
	GetCount() (int, error)

	// WriteLedgerLog writes every ledger record as a tab-separated line to filePath
	WriteLedgerLog(filePath string) error

	// Close runs a value-log GC pass and closes the database
	Close() error
}

// LedgerStore combines all store interfaces for components that need full access
type LedgerStore interface {
	ImageStore
	DocumentStore
	StoreAdmin
}
