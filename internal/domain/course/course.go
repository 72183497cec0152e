package course

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("course not found")

// Option is a catalog dimension entry such as a subject or a level.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SubjectID    string    `json:"subjectId"`
	LevelID      string    `json:"levelId"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ListFilter struct {
	SubjectID *string `form:"subjectId" binding:"omitempty,uuid"`
	LevelID   *string `form:"levelId" binding:"omitempty,uuid"`
}
