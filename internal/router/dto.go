package router

import (
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/ingest"
	"github.com/DjordjeVuckovic/planet-sync/internal/publish"
	"github.com/DjordjeVuckovic/planet-sync/internal/scheduler"
	"github.com/google/uuid"
)

// CreatePlanetRequest creates an owned planet from Name, or follows Follow when set.
type CreatePlanetRequest struct {
	Name   string `json:"name"`
	About  string `json:"about"`
	Follow string `json:"follow"`
}

type UpdatePlanetRequest struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

type ArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ReadRequest struct {
	Read bool `json:"read"`
}

type StarRequest struct {
	Starred bool `json:"starred"`
}

type PublishResponse struct {
	PlanetID uuid.UUID `json:"planetId"`
	Skipped  bool      `json:"skipped"`
	CID      string    `json:"cid,omitempty"`
	Pointer  string    `json:"pointer,omitempty"`
}

func newPublishResponse(r *publish.Result) *PublishResponse {
	if r == nil {
		return nil
	}
	return &PublishResponse{PlanetID: r.PlanetID, Skipped: r.Skipped, CID: r.CID, Pointer: r.Pointer}
}

type IngestResponse struct {
	Fetched   int  `json:"fetched"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	Existing  int  `json:"existing"`
	Skipped   int  `json:"skipped"`
	Unchanged bool `json:"unchanged"`
}

func newIngestResponse(r *ingest.Result) *IngestResponse {
	if r == nil {
		return nil
	}
	return &IngestResponse{
		Fetched:   r.Fetched,
		Created:   r.Created,
		Updated:   r.Updated,
		Existing:  r.Existing,
		Skipped:   r.Skipped,
		Unchanged: r.Unchanged,
	}
}

type SyncResponse struct {
	PlanetID uuid.UUID        `json:"planetId"`
	Ingest   *IngestResponse  `json:"ingest,omitempty"`
	Publish  *PublishResponse `json:"publish,omitempty"`
}

func newSyncResponse(r *scheduler.SyncResult) *SyncResponse {
	return &SyncResponse{
		PlanetID: r.PlanetID,
		Ingest:   newIngestResponse(r.Ingest),
		Publish:  newPublishResponse(r.Publish),
	}
}

type LinkResponse struct {
	ArticleID uuid.UUID      `json:"articleId"`
	Gateway   domain.Gateway `json:"gateway"`
	URL       string         `json:"url"`
}

// MutationResponse wraps authoring results; Queued reports whether a publish was scheduled.
type MutationResponse struct {
	Item   any       `json:"item"`
	Queued bool      `json:"queued"`
	At     time.Time `json:"at"`
}
