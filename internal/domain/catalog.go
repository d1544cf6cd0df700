// Package domain holds the record types shared by the storage backends,
// the recommendation engine and the HTTP API.
package domain

import (
	"time"
)

// ClientStatus is the practitioner-facing status of a client.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is an end recipient of coaching.
type Client struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Avatar       string       `json:"avatar,omitempty"`
	Status       ClientStatus `json:"status,omitempty"`
	Practitioner string       `json:"practitioner,omitempty"`
	JoinDate     time.Time    `json:"joinDate"`
}

// Validate checks that the client has a name.
func (c Client) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// ResourceType enumerates the kinds of content in the resource catalog.
type ResourceType string

const (
	ResourceTypeVideo     ResourceType = "video"
	ResourceTypeArticle   ResourceType = "article"
	ResourceTypeAudio     ResourceType = "audio"
	ResourceTypeWorksheet ResourceType = "worksheet"
)

// Valid reports whether t is one of the known resource types.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTypeVideo, ResourceTypeArticle, ResourceTypeAudio, ResourceTypeWorksheet:
		return true
	}
	return false
}

// Difficulty is the optional level of a resource. The zero value means unset.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Valid reports whether d is unset or one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case "", DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Resource is a content item in the catalog.
type Resource struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Category     string       `json:"category"`
	Type         ResourceType `json:"type"`
	Difficulty   Difficulty   `json:"difficulty,omitempty"`
	Description  string       `json:"description,omitempty"`
	MediaURL     string       `json:"mediaUrl,omitempty"`
	Duration     int          `json:"duration,omitempty"` // minutes, for video/audio
	ReadTime     int          `json:"readTime,omitempty"` // minutes, for articles
	Downloadable bool         `json:"downloadable"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Validate checks required fields and enumerations.
func (r Resource) Validate() error {
	if r.Title == "" {
		return ErrEmptyTitle
	}
	if !r.Type.Valid() {
		return ErrInvalidResourceType
	}
	if !r.Difficulty.Valid() {
		return ErrInvalidDifficulty
	}
	return nil
}

// InteractionType is what a client did with a resource.
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionDownload InteractionType = "download"
	InteractionComplete InteractionType = "complete"
)

// Interaction is an append-only log entry of a client touching a resource.
type Interaction struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"clientId"`
	ResourceID string          `json:"resourceId"`
	Type       InteractionType `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Validate checks the references and type of an interaction.
func (i Interaction) Validate() error {
	if i.ClientID == "" {
		return ErrEmptyClientID
	}
	if i.ResourceID == "" {
		return ErrEmptyResourceID
	}
	if i.Type == "" {
		return ErrEmptyInteractionType
	}
	return nil
}
