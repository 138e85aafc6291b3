package core

import (
	"context"
)

// MessageSource is the live inbox view the engine scans
type MessageSource interface {
	// ListVisibleMessages returns a snapshot of every currently visible message
	ListVisibleMessages(ctx context.Context) ([]Message, error)

	// OnVisibleSetChanged registers a callback fired when messages are added
	OnVisibleSetChanged(fn func())

	// OnMessageRemoved registers a callback fired when a message leaves the view
	OnMessageRemoved(fn func(messageID string))

	// OnMessageOpened registers a callback fired when the user opens a message
	OnMessageOpened(fn func(messageID string))
}

// SourceWatcher is implemented by sources that need a background watch loop
type SourceWatcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// Renderer is the notification surface that paints warnings
type Renderer interface {
	ShowWarning(messageID string, warnings []Warning)
	RetractWarning(messageID string)
	UpdateCount(n int)
	ShowAnalysisResult(payload DisplayPayload)
	ShowError(message string)
}

// Classifier sends a message to the remote classifier
type Classifier interface {
	Classify(ctx context.Context, msg Message) (*RemoteVerdict, error)
}

// LLMClient asks a language model whether a message is phishing
type LLMClient interface {
	// AnalyzeEmail analyzes a message to determine if it's phishing
	AnalyzeEmail(ctx context.Context, msg *Message) (*Assessment, error)
}

// CacheRepository defines the interface for caching assessments
type CacheRepository interface {
	// Get retrieves a cached entry for a message fingerprint
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
