package types

import "time"

// Annotation is the free-text note attached to one image.
type Annotation struct {
	ID        int64
	ImageID   int64
	Timestamp *time.Time
	Comment   string
	Rating    int
	Tags      []string
}

// Tag is a label that can be attached to annotations.
type Tag struct {
	ID   int64
	Name string
}

// TagAssociation joins an annotation and a tag.
type TagAssociation struct {
	ID           int64
	AnnotationID int64
	TagID        int64
}
