// Package session stores chat transcripts per browser session.
package session

import (
	"context"

	"github.com/yelpclone/directory/internal/domain"
)

// Store persists the chat transcript of each session.
type Store interface {
	// Load returns the transcript in chronological order. An unknown or
	// expired session yields an empty transcript.
	Load(ctx context.Context, id string) ([]domain.ChatMessage, error)

	// Append adds msgs to the end of the transcript. Either all of msgs are
	// stored or none are.
	Append(ctx context.Context, id string, msgs ...domain.ChatMessage) error

	// Delete drops the transcript.
	Delete(ctx context.Context, id string) error
}
