package models

import "time"

// ImageReference is one `![alt](url)` match found in a document's original text
type ImageReference struct {
	AltText     string
	SourceURL   string
	MatchedSpan string // Verbatim substring that gets replaced on success
	Start       int    // Byte offset of MatchedSpan in the original text
	End         int    // Byte offset just past MatchedSpan
}

// IndexedReference pairs a network reference with its naming index
// The index counts network references only, in order of appearance
type IndexedReference struct {
	Index int
	Ref   ImageReference
}

// ProcessingOptions holds the per-run switches read by the planner and normalizer
// Built once at startup and passed by value; never mutated afterwards
type ProcessingOptions struct {
	ConvertAllToJPG bool
}

// DocumentContext describes where a document lives and where its images go
type DocumentContext struct {
	FilePath            string
	ContainingDirectory string
	BaseName            string // File name without its extension
	ImagesDirectory     string // ContainingDirectory/BaseName
}

// LocalImagePlan is the local destination computed for one reference
// Conversion rewrites every field; the final state is what the document links to
type LocalImagePlan struct {
	LocalAbsolutePath    string
	LocalFileName        string
	DocumentRelativeLink string // Always uses forward slashes
	Extension            string
}

// ImageDBEntry stores the outcome of localizing an image URL in the ledger
type ImageDBEntry struct {
	Status       ImageStatus `json:"status"`                  // "success" or "failure"
	Document     string      `json:"document"`                // Absolute path of the referencing document
	Index        int         `json:"index"`                   // Naming index within that document
	LocalPath    string      `json:"local_path,omitempty"`    // Document-relative link (on success)
	ContentHash  string      `json:"content_hash,omitempty"`  // SHA-256 of the stored file (on success)
	ErrorType    string      `json:"error_type,omitempty"`    // Error category (on failure)
	ErrorMessage string      `json:"error_message,omitempty"` // Full error text (on failure)
	RunID        string      `json:"run_id,omitempty"`
	LastAttempt  time.Time   `json:"last_attempt"`
}

// DocumentDBEntry stores the outcome of rewriting a document in the ledger
type DocumentDBEntry struct {
	Status      DocumentStatus `json:"status"`
	ContentHash string         `json:"content_hash,omitempty"` // SHA-256 of the text written back
	Rewritten   int            `json:"rewritten"`
	Failed      int            `json:"failed"`
	ErrorType   string         `json:"error_type,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// ReferenceResult reports what happened to one network reference
type ReferenceResult struct {
	Index     int
	SourceURL string
	Plan      *LocalImagePlan // Nil on failure
	Converted bool
	Err       error
}

// DocumentResult summarizes one ProcessDocument call
type DocumentResult struct {
	FilePath          string
	TotalReferences   int // All `![alt](url)` matches
	NetworkReferences int
	References        []ReferenceResult
	Duration          time.Duration
}

// Rewritten counts references whose link now points at a local copy
func (r *DocumentResult) Rewritten() int {
	n := 0
	for _, ref := range r.References {
		if ref.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts references left untouched because of an error
func (r *DocumentResult) Failed() int {
	return len(r.References) - r.Rewritten()
}
