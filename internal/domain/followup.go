package domain

import "github.com/google/uuid"

type FollowUpKind string

const (
	FollowUpPublish FollowUpKind = "publish"
	FollowUpIngest  FollowUpKind = "ingest"
	// FollowUpRefresh re-reads a feed and rewrites title and link of articles
	// matched by id.
	FollowUpRefresh FollowUpKind = "refresh"
)

// FollowUp is work an operation asks its caller to schedule next,
// e.g. publishing an owned planet after its articles changed.
type FollowUp struct {
	Kind     FollowUpKind
	PlanetID uuid.UUID
	FeedURL  string
}
