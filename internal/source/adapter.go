package source

import (
	"context"

	"github.com/skinlytics/skinlytics/internal/model"
)

// Record is one raw source payload able to map itself onto the
// canonical shapes. Normalize returns a RejectError for records with
// missing required fields or semantically invalid values.
type Record interface {
	Normalize() (model.Item, model.Listing, error)
}

// Page is one fetched page of raw records. An empty NextCursor marks
// the end of the feed.
type Page struct {
	Records    []Record
	NextCursor string
}

// Adapter fetches raw pages from one marketplace. Implementations are
// stateless between calls: the cursor carries all pagination state, so
// a cycle can resume or abandon a feed at any page boundary.
type Adapter interface {
	Source() model.Source
	FetchPage(ctx context.Context, cursor string) (*Page, error)
}
