package model

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/sakif/avatar-vault/internal/apperror"
)

const (
	MaxNameLength   = 100
	MaxKeyLength    = 64
	MaxUserIDLength = 128
)

// NameKey folds a display name for case-insensitive uniqueness. The result
// is what the store's (user_id, name_key) constraint compares.
func NameKey(name string) string {
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}

// NewAvatarID returns a fresh globally unique avatar id.
func NewAvatarID() string {
	return uuid.NewString()
}

// ParseAvatarID validates an avatar id and returns its canonical form.
func ParseAvatarID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", apperror.ValidationFailed("avatarId", "avatar identifier is invalid")
	}
	return parsed.String(), nil
}

// ValidateUserID checks the identity asserted by the auth layer.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("userId", "user identifier is required")
	}
	if len(id) > MaxUserIDLength {
		return apperror.ValidationFailed("userId",
			fmt.Sprintf("user identifier must be %d characters or less", MaxUserIDLength))
	}
	return nil
}

// Normalize trims and defaults the payload, then validates every field.
// It runs before any storage is touched.
func (n *NewAvatar) Normalize() error {
	name, err := normalizeName(n.Name, true)
	if err != nil {
		return err
	}
	n.Name = name

	defaults := DefaultMetadata()
	if n.Metadata.Gender == "" {
		n.Metadata.Gender = defaults.Gender
	}
	if n.Metadata.AgeRange == "" {
		n.Metadata.AgeRange = defaults.AgeRange
	}
	if n.Metadata.CreationMode == "" {
		n.Metadata.CreationMode = defaults.CreationMode
	}
	if n.Metadata.Source == "" {
		n.Metadata.Source = defaults.Source
	}
	if err := n.Metadata.Validate(); err != nil {
		return err
	}

	if n.BasicMeasurements, err = normalizeValues("basicMeasurements", n.BasicMeasurements); err != nil {
		return err
	}
	if n.BodyMeasurements, err = normalizeValues("bodyMeasurements", n.BodyMeasurements); err != nil {
		return err
	}
	morphs, err := normalizeValues("morphTargets", n.MorphTargets)
	if err != nil {
		return err
	}
	n.MorphTargets = MorphTargets(morphs)

	if n.QuickMode != nil {
		if err := n.QuickMode.normalize(); err != nil {
			return err
		}
	}
	return nil
}

// Normalize validates only the fields present in the patch.
func (p *AvatarPatch) Normalize() error {
	if p.Name != nil {
		name, err := normalizeName(*p.Name, false)
		if err != nil {
			return err
		}
		p.Name = &name
	}
	if p.Metadata != nil {
		if err := p.Metadata.Validate(); err != nil {
			return err
		}
	}
	if p.BasicMeasurements != nil {
		m, err := normalizeValues("basicMeasurements", *p.BasicMeasurements)
		if err != nil {
			return err
		}
		p.BasicMeasurements = &m
	}
	if p.BodyMeasurements != nil {
		m, err := normalizeValues("bodyMeasurements", *p.BodyMeasurements)
		if err != nil {
			return err
		}
		p.BodyMeasurements = &m
	}
	if p.MorphTargets != nil {
		m, err := normalizeValues("morphTargets", *p.MorphTargets)
		if err != nil {
			return err
		}
		morphs := MorphTargets(m)
		p.MorphTargets = &morphs
	}
	if p.SetQuickMode && p.QuickMode != nil {
		if err := p.QuickMode.normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (m Metadata) Validate() error {
	if !m.Gender.Valid() {
		return invalidEnum("metadata.gender", string(m.Gender))
	}
	if !m.AgeRange.Valid() {
		return invalidEnum("metadata.ageRange", string(m.AgeRange))
	}
	if !m.CreationMode.Valid() {
		return invalidEnum("metadata.creationMode", string(m.CreationMode))
	}
	if !m.Source.Valid() {
		return invalidEnum("metadata.source", string(m.Source))
	}
	return nil
}

func (m *MetadataPatch) Validate() error {
	if m.Gender != nil && !m.Gender.Valid() {
		return invalidEnum("metadata.gender", string(*m.Gender))
	}
	if m.AgeRange != nil && !m.AgeRange.Valid() {
		return invalidEnum("metadata.ageRange", string(*m.AgeRange))
	}
	if m.CreationMode != nil && !m.CreationMode.Valid() {
		return invalidEnum("metadata.creationMode", string(*m.CreationMode))
	}
	if m.Source != nil && !m.Source.Valid() {
		return invalidEnum("metadata.source", string(*m.Source))
	}
	return nil
}

// Apply returns md with the patch's non-nil fields written over it.
func (m *MetadataPatch) Apply(md Metadata) Metadata {
	if m.Gender != nil {
		md.Gender = *m.Gender
	}
	if m.AgeRange != nil {
		md.AgeRange = *m.AgeRange
	}
	if m.CreationMode != nil {
		md.CreationMode = *m.CreationMode
	}
	if m.Source != nil {
		md.Source = *m.Source
	}
	return md
}

// Validate checks the two preset enumerations.
func (q *QuickModeSettings) Validate() error {
	if !q.BodyShape.Valid() {
		return invalidEnum("quickModeSettings.bodyShape", string(q.BodyShape))
	}
	if !q.AthleticLevel.Valid() {
		return invalidEnum("quickModeSettings.athleticLevel", string(q.AthleticLevel))
	}
	return nil
}

func (q *QuickModeSettings) normalize() error {
	if err := q.Validate(); err != nil {
		return err
	}
	m, err := normalizeValues("quickModeSettings.measurements", q.Measurements)
	if err != nil {
		return err
	}
	if m == nil {
		m = Measurements{}
	}
	q.Measurements = m
	return nil
}

// normalizeName trims the name. On create a blank name falls back to
// DefaultAvatarName; on rename it is rejected.
func normalizeName(name string, allowDefault bool) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if !allowDefault {
			return "", apperror.ValidationFailed("name", "avatar name must not be empty")
		}
		name = DefaultAvatarName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("avatar name must be %d characters or less", MaxNameLength))
	}
	return name, nil
}

// normalizeValues trims keys and rejects empty or overlong keys, keys that
// collide after trimming, and non-finite values. A nil input stays nil.
func normalizeValues[M ~map[string]float64](section string, in M) (Measurements, error) {
	if in == nil {
		return nil, nil
	}
	out := make(Measurements, len(in))
	for key, value := range in {
		k := strings.TrimSpace(key)
		if k == "" {
			return nil, apperror.ValidationFailed(section, fmt.Sprintf("keys in %s must not be empty", section))
		}
		if len(k) > MaxKeyLength {
			return nil, apperror.ValidationFailed(section,
				fmt.Sprintf("key %q in %s must be %d characters or less", k, section, MaxKeyLength))
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, apperror.ValidationFailed(section,
				fmt.Sprintf("value of %q in %s must be a finite number", k, section))
		}
		if _, dup := out[k]; dup {
			return nil, apperror.ValidationFailed(section,
				fmt.Sprintf("key %q appears more than once in %s", k, section))
		}
		out[k] = value
	}
	return out, nil
}

func invalidEnum(field, value string) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("%q is not a valid value for %s", value, field))
}
