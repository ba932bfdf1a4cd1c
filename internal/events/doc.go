// Package events provides a pub-sub event bus for decoupled inter-component
// communication in ChestBuddy.
//
// This package enables loose coupling between the import pipeline, the record
// table, validation, correction, and the HTTP layer by allowing them to
// communicate through events rather than direct method calls. Components can
// publish events without knowing who will receive them, and subscribe to
// events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Record Table:
//   - [RecordsImportedEvent]: Emitted when an import lands records in the table
//   - [RecordsUpdatedEvent]: Emitted when a record's cells are edited
//   - [RecordsDeletedEvent]: Emitted when a record is deleted
//   - [RecordsClearedEvent]: Emitted when the table is cleared
//
// Validation and Correction:
//   - [ValidationCompletedEvent]: Emitted when a validation run finishes
//   - [CorrectionsAppliedEvent]: Emitted when correction rules rewrite records
//   - [CorrectionRulesChangedEvent]: Emitted when the rule set changes
//
// Reference Lists:
//   - [ListsUpdatedEvent]: Emitted when a list is edited through the API
//   - [ListsReloadedEvent]: Emitted when the watcher reloads a list file
//
// Import Lifecycle:
//   - [ImportQueuedEvent]: Emitted when an import job enters the queue
//   - [ImportProgressEvent]: Emitted per processed chunk
//   - [ImportCompletedEvent]: Emitted when an import finishes
//   - [ImportFailedEvent]: Emitted when an import fails
//   - [ImportCanceledEvent]: Emitted when an import is canceled
//
// Export:
//   - [ExportCompletedEvent]: Emitted when a CSV export finishes
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := events.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe(events.ImportCompleted, func(e events.Event) {
//	    done := e.(events.ImportCompletedEvent)
//	    log.Printf("import %s finished: %d rows", done.JobID, done.RowsImported)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e events.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(events.NewImportQueuedEvent("job-1", "/data/chests.csv"))
//
//	// Unsubscribe when done
//	id := bus.Subscribe(events.RecordsImported, handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - records.imported, records.updated, records.deleted, records.cleared
//   - validation.completed
//   - corrections.applied, corrections.rules_changed
//   - lists.updated, lists.reloaded
//   - import.queued, import.progress, import.completed, import.failed, import.canceled
//   - export.completed
package events
