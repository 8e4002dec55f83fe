package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Thread kinds. Exactly one of ParentID / RepostOfID is set for
// reply / repost; both are empty for a top-level post.
const (
	ThreadKindPost   = "post"
	ThreadKindReply  = "reply"
	ThreadKindRepost = "repost"
)

// RepostPlaceholderBody is the conventional body text of a repost row.
const RepostPlaceholderBody = "reposted"

// Media describes a single attached media object. URL is time-limited
// and re-derived from Key on every read.
type Media struct {
	Type        string `json:"type" bson:"type"` // "image" or "video"
	Key         string `json:"key" bson:"key"`
	ContentType string `json:"content_type" bson:"content_type"`
	URL         string `json:"url" bson:"url"`
}

// Thread represents a content item stored in MongoDB: a top-level post,
// a reply to another thread, or a repost of another thread.
type Thread struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AuthorID   uint               `json:"author_id" bson:"author_id"`
	Kind       string             `json:"kind" bson:"kind"`
	Body       string             `json:"body" bson:"body"`
	Media      *Media             `json:"media,omitempty" bson:"media,omitempty"`
	ParentID   string             `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	RepostOfID string             `json:"repost_of_id,omitempty" bson:"repost_of_id,omitempty"`
	Hashtags   []string           `json:"hashtags,omitempty" bson:"hashtags,omitempty"`
	MentionIDs []uint             `json:"mention_ids,omitempty" bson:"mention_ids,omitempty"`
	IsArchived bool               `json:"is_archived" bson:"is_archived"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasContent reports whether the thread carries a non-empty trimmed body
// or a media attachment.
func (t *Thread) HasContent() bool {
	return strings.TrimSpace(t.Body) != "" || t.Media != nil
}

// CreateThreadRequest defines the non-file fields of a thread creation
// request; media arrives as a multipart file part.
type CreateThreadRequest struct {
	Body string `json:"body" form:"body" validate:"omitempty,max=500"`
}

// ArchiveThreadRequest toggles the archived flag
type ArchiveThreadRequest struct {
	Archived bool `json:"archived"`
}
