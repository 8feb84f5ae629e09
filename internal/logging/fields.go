package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService   = "service"
	FieldEventType = "event_type"
	FieldEntryID   = "entry_id"
	FieldGroup     = "group"
	FieldConsumer  = "consumer"
	FieldStrategy  = "strategy"
	FieldNamespace = "namespace"
	FieldFileID    = "file_id"
	FieldStage     = "stage"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EventType returns a slog attribute for a bus event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// EntryID returns a slog attribute for a stream entry ID.
func EntryID(id string) slog.Attr {
	return slog.String(FieldEntryID, id)
}

// Strategy returns a slog attribute for a pipeline strategy name.
func Strategy(name string) slog.Attr {
	return slog.String(FieldStrategy, name)
}

// Namespace returns a slog attribute for a store namespace.
func Namespace(ns string) slog.Attr {
	return slog.String(FieldNamespace, ns)
}

// FileID returns a slog attribute for a source file ID.
func FileID(id string) slog.Attr {
	return slog.String(FieldFileID, id)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
