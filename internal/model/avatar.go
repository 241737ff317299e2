// Package model defines the data structures used throughout the application.
//
// An Avatar is a header row (name, slot, metadata) plus four dependent
// collections: basic measurements, body measurements, morph targets and an
// optional quick-mode record. Collections are mappings, so key order is never
// meaningful.
package model

import "time"

// DefaultAvatarName is used when a create payload carries a blank name.
const DefaultAvatarName = "Untitled Avatar"

// Measurements maps a caller-defined measurement key (height, waist, ...)
// to its value.
type Measurements map[string]float64

// MorphTargets maps a morph id to its slider value.
type MorphTargets map[string]float64

// Metadata holds the closed-enumeration descriptors of an avatar.
type Metadata struct {
	Gender       Gender       `json:"gender"`
	AgeRange     AgeRange     `json:"ageRange"`
	CreationMode CreationMode `json:"creationMode"`
	Source       Source       `json:"source"`
}

// QuickModeSettings is the optional simplified preset record of an avatar.
type QuickModeSettings struct {
	BodyShape     BodyShape     `json:"bodyShape"`
	AthleticLevel AthleticLevel `json:"athleticLevel"`
	Measurements  Measurements  `json:"measurements"`
}

// Avatar is the fully assembled view returned by every repository read.
type Avatar struct {
	ID                string             `json:"id"`
	UserID            string             `json:"userId"`
	Name              string             `json:"name"`
	Slot              int                `json:"slot"`
	Metadata          Metadata           `json:"metadata"`
	BasicMeasurements Measurements       `json:"basicMeasurements"`
	BodyMeasurements  Measurements       `json:"bodyMeasurements"`
	MorphTargets      MorphTargets       `json:"morphTargets"`
	QuickMode         *QuickModeSettings `json:"quickModeSettings"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// NewAvatar is the create payload. Nil collections are simply not written.
type NewAvatar struct {
	Name              string
	Metadata          Metadata
	BasicMeasurements Measurements
	BodyMeasurements  Measurements
	MorphTargets      MorphTargets
	QuickMode         *QuickModeSettings
}

// MetadataPatch changes only the fields that are non-nil.
type MetadataPatch struct {
	Gender       *Gender
	AgeRange     *AgeRange
	CreationMode *CreationMode
	Source       *Source
}

// AvatarPatch is the update payload.
//
// A nil pointer leaves the field untouched. A non-nil collection pointer
// replaces the collection wholesale; pointing at an empty (or nil) mapping
// clears it. SetQuickMode with a nil QuickMode deletes the quick-mode record.
type AvatarPatch struct {
	Name              *string
	Metadata          *MetadataPatch
	BasicMeasurements *Measurements
	BodyMeasurements  *Measurements
	MorphTargets      *MorphTargets
	SetQuickMode      bool
	QuickMode         *QuickModeSettings
}

// IsEmpty reports whether the patch changes nothing.
func (p *AvatarPatch) IsEmpty() bool {
	return p.Name == nil && p.Metadata == nil && p.BasicMeasurements == nil &&
		p.BodyMeasurements == nil && p.MorphTargets == nil && !p.SetQuickMode
}
