package crawler

import (
	"context"
	"io"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// MemberStore persists the exported records of a run.
type MemberStore interface {
	SaveMembers(ctx context.Context, runID string, records []member.Record) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
