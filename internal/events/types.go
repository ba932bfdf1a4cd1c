package events

import "time"

// EventType identifies a category.action event name.
type EventType string

// Event type constants published by ChestBuddy components.
const (
	RecordsImported        EventType = "records.imported"
	RecordsUpdated         EventType = "records.updated"
	RecordsDeleted         EventType = "records.deleted"
	RecordsCleared         EventType = "records.cleared"
	ValidationCompleted    EventType = "validation.completed"
	CorrectionsApplied     EventType = "corrections.applied"
	CorrectionRulesChanged EventType = "corrections.rules_changed"
	ListsUpdated           EventType = "lists.updated"
	ListsReloaded          EventType = "lists.reloaded"
	ImportQueued           EventType = "import.queued"
	ImportProgress         EventType = "import.progress"
	ImportCompleted        EventType = "import.completed"
	ImportFailed           EventType = "import.failed"
	ImportCanceled         EventType = "import.canceled"
	ExportCompleted        EventType = "export.completed"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns the identifier for this event type.
	EventType() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type BaseEvent struct {
	eventType EventType
	timestamp time.Time
}

func (e BaseEvent) EventType() EventType { return e.eventType }
func (e BaseEvent) Timestamp() time.Time { return e.timestamp }

// newBase creates a BaseEvent with the current time.
func newBase(eventType EventType) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Record Table Events
// -----------------------------------------------------------------------------

// RecordsImportedEvent is emitted when an import lands records in the table.
type RecordsImportedEvent struct {
	BaseEvent
	JobID      string // Import job that produced the records
	File       string // Source file path
	Imported   int    // Records added to the table
	Duplicates int    // Rows skipped as duplicates
	Invalid    int    // Rows rejected as malformed
}

// NewRecordsImportedEvent creates a RecordsImportedEvent.
func NewRecordsImportedEvent(jobID, file string, imported, duplicates, invalid int) RecordsImportedEvent {
	return RecordsImportedEvent{
		BaseEvent:  newBase(RecordsImported),
		JobID:      jobID,
		File:       file,
		Imported:   imported,
		Duplicates: duplicates,
		Invalid:    invalid,
	}
}

// RecordsUpdatedEvent is emitted when a record's cells are edited.
type RecordsUpdatedEvent struct {
	BaseEvent
	RecordID string   // Record that changed
	Fields   []string // Field names that were edited
}

// NewRecordsUpdatedEvent creates a RecordsUpdatedEvent.
func NewRecordsUpdatedEvent(recordID string, fields []string) RecordsUpdatedEvent {
	return RecordsUpdatedEvent{
		BaseEvent: newBase(RecordsUpdated),
		RecordID:  recordID,
		Fields:    fields,
	}
}

// RecordsDeletedEvent is emitted when a record is deleted from the table.
type RecordsDeletedEvent struct {
	BaseEvent
	RecordID string // Record that was removed
}

// NewRecordsDeletedEvent creates a RecordsDeletedEvent.
func NewRecordsDeletedEvent(recordID string) RecordsDeletedEvent {
	return RecordsDeletedEvent{
		BaseEvent: newBase(RecordsDeleted),
		RecordID:  recordID,
	}
}

// RecordsClearedEvent is emitted when the record table is cleared.
type RecordsClearedEvent struct {
	BaseEvent
	Dropped int // Number of records removed
}

// NewRecordsClearedEvent creates a RecordsClearedEvent.
func NewRecordsClearedEvent(dropped int) RecordsClearedEvent {
	return RecordsClearedEvent{
		BaseEvent: newBase(RecordsCleared),
		Dropped:   dropped,
	}
}

// -----------------------------------------------------------------------------
// Validation Events
// -----------------------------------------------------------------------------

// ValidationCompletedEvent is emitted when a validation run finishes.
type ValidationCompletedEvent struct {
	BaseEvent
	Checked  int           // Records checked
	Invalid  int           // Records that failed validation
	Duration time.Duration // Wall time of the run
}

// NewValidationCompletedEvent creates a ValidationCompletedEvent.
func NewValidationCompletedEvent(checked, invalid int, duration time.Duration) ValidationCompletedEvent {
	return ValidationCompletedEvent{
		BaseEvent: newBase(ValidationCompleted),
		Checked:   checked,
		Invalid:   invalid,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Correction Events
// -----------------------------------------------------------------------------

// CorrectionsAppliedEvent is emitted when correction rules rewrite records.
type CorrectionsAppliedEvent struct {
	BaseEvent
	Records int // Records touched by at least one rule
	Changes int // Individual cell changes
}

// NewCorrectionsAppliedEvent creates a CorrectionsAppliedEvent.
func NewCorrectionsAppliedEvent(records, changes int) CorrectionsAppliedEvent {
	return CorrectionsAppliedEvent{
		BaseEvent: newBase(CorrectionsApplied),
		Records:   records,
		Changes:   changes,
	}
}

// CorrectionRulesChangedEvent is emitted when the correction rule set changes.
type CorrectionRulesChangedEvent struct {
	BaseEvent
	Rules int // Rule count after the change
}

// NewCorrectionRulesChangedEvent creates a CorrectionRulesChangedEvent.
func NewCorrectionRulesChangedEvent(rules int) CorrectionRulesChangedEvent {
	return CorrectionRulesChangedEvent{
		BaseEvent: newBase(CorrectionRulesChanged),
		Rules:     rules,
	}
}

// -----------------------------------------------------------------------------
// Reference List Events
// -----------------------------------------------------------------------------

// ListsUpdatedEvent is emitted when a reference list is edited through the API.
type ListsUpdatedEvent struct {
	BaseEvent
	Kind    string // List kind ("players", "chest_types", "sources")
	Entries int    // Entry count after the change
}

// NewListsUpdatedEvent creates a ListsUpdatedEvent.
func NewListsUpdatedEvent(kind string, entries int) ListsUpdatedEvent {
	return ListsUpdatedEvent{
		BaseEvent: newBase(ListsUpdated),
		Kind:      kind,
		Entries:   entries,
	}
}

// ListsReloadedEvent is emitted when the watcher reloads a list file from disk.
type ListsReloadedEvent struct {
	BaseEvent
	Kind    string // List kind ("players", "chest_types", "sources")
	Path    string // File that changed
	Entries int    // Entry count after the reload
}

// NewListsReloadedEvent creates a ListsReloadedEvent.
func NewListsReloadedEvent(kind, path string, entries int) ListsReloadedEvent {
	return ListsReloadedEvent{
		BaseEvent: newBase(ListsReloaded),
		Kind:      kind,
		Path:      path,
		Entries:   entries,
	}
}

// -----------------------------------------------------------------------------
// Import Lifecycle Events
// -----------------------------------------------------------------------------

// ImportQueuedEvent is emitted when an import job enters the queue.
type ImportQueuedEvent struct {
	BaseEvent
	JobID string // Job identifier
	File  string // Source file path
}

// NewImportQueuedEvent creates an ImportQueuedEvent.
func NewImportQueuedEvent(jobID, file string) ImportQueuedEvent {
	return ImportQueuedEvent{
		BaseEvent: newBase(ImportQueued),
		JobID:     jobID,
		File:      file,
	}
}

// ImportProgressEvent is emitted after each processed chunk.
type ImportProgressEvent struct {
	BaseEvent
	JobID        string // Job identifier
	RowsRead     int    // Rows read so far
	RowsImported int    // Rows landed in the table so far
	Duplicates   int    // Duplicate rows skipped so far
	Invalid      int    // Malformed rows skipped so far
}

// NewImportProgressEvent creates an ImportProgressEvent.
func NewImportProgressEvent(jobID string, rowsRead, rowsImported, duplicates, invalid int) ImportProgressEvent {
	return ImportProgressEvent{
		BaseEvent:    newBase(ImportProgress),
		JobID:        jobID,
		RowsRead:     rowsRead,
		RowsImported: rowsImported,
		Duplicates:   duplicates,
		Invalid:      invalid,
	}
}

// ImportCompletedEvent is emitted when an import job finishes successfully.
type ImportCompletedEvent struct {
	BaseEvent
	JobID        string        // Job identifier
	File         string        // Source file path
	RowsRead     int           // Total rows read
	RowsImported int           // Rows landed in the table
	Duplicates   int           // Duplicate rows skipped
	Invalid      int           // Malformed rows skipped
	Corrected    int           // Records rewritten by correction rules
	Duration     time.Duration // Wall time of the import
}

// NewImportCompletedEvent creates an ImportCompletedEvent.
func NewImportCompletedEvent(jobID, file string, rowsRead, rowsImported, duplicates, invalid, corrected int, duration time.Duration) ImportCompletedEvent {
	return ImportCompletedEvent{
		BaseEvent:    newBase(ImportCompleted),
		JobID:        jobID,
		File:         file,
		RowsRead:     rowsRead,
		RowsImported: rowsImported,
		Duplicates:   duplicates,
		Invalid:      invalid,
		Corrected:    corrected,
		Duration:     duration,
	}
}

// ImportFailedEvent is emitted when an import job fails.
type ImportFailedEvent struct {
	BaseEvent
	JobID string // Job identifier
	File  string // Source file path
	Error string // Failure description
}

// NewImportFailedEvent creates an ImportFailedEvent.
func NewImportFailedEvent(jobID, file, errMsg string) ImportFailedEvent {
	return ImportFailedEvent{
		BaseEvent: newBase(ImportFailed),
		JobID:     jobID,
		File:      file,
		Error:     errMsg,
	}
}

// ImportCanceledEvent is emitted when an import job is canceled.
type ImportCanceledEvent struct {
	BaseEvent
	JobID string // Job identifier
	File  string // Source file path
}

// NewImportCanceledEvent creates an ImportCanceledEvent.
func NewImportCanceledEvent(jobID, file string) ImportCanceledEvent {
	return ImportCanceledEvent{
		BaseEvent: newBase(ImportCanceled),
		JobID:     jobID,
		File:      file,
	}
}

// -----------------------------------------------------------------------------
// Export Events
// -----------------------------------------------------------------------------

// ExportCompletedEvent is emitted when a CSV export finishes.
type ExportCompletedEvent struct {
	BaseEvent
	Destination string // Target path, or "stream" for HTTP responses
	Records     int    // Records written
}

// NewExportCompletedEvent creates an ExportCompletedEvent.
func NewExportCompletedEvent(destination string, records int) ExportCompletedEvent {
	return ExportCompletedEvent{
		BaseEvent:   newBase(ExportCompleted),
		Destination: destination,
		Records:     records,
	}
}
