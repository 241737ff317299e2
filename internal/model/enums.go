package model

type Gender string

const (
	GenderFemale      Gender = "female"
	GenderMale        Gender = "male"
	GenderNonBinary   Gender = "non_binary"
	GenderUnspecified Gender = "unspecified"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderNonBinary, GenderUnspecified:
		return true
	}
	return false
}

type AgeRange string

const (
	AgeUnder18     AgeRange = "under_18"
	Age18To24      AgeRange = "18_24"
	Age25To34      AgeRange = "25_34"
	Age35To44      AgeRange = "35_44"
	Age45To54      AgeRange = "45_54"
	Age55To64      AgeRange = "55_64"
	Age65Plus      AgeRange = "65_plus"
	AgeUnspecified AgeRange = "unspecified"
)

func (a AgeRange) Valid() bool {
	switch a {
	case AgeUnder18, Age18To24, Age25To34, Age35To44, Age45To54, Age55To64, Age65Plus, AgeUnspecified:
		return true
	}
	return false
}

type CreationMode string

const (
	CreationManual CreationMode = "manual"
	CreationQuick  CreationMode = "quick"
	CreationScan   CreationMode = "scan"
	CreationPreset CreationMode = "preset"
)

func (m CreationMode) Valid() bool {
	switch m {
	case CreationManual, CreationQuick, CreationScan, CreationPreset:
		return true
	}
	return false
}

type Source string

const (
	SourceWeb     Source = "web"
	SourceIOS     Source = "ios"
	SourceAndroid Source = "android"
	SourceAPI     Source = "api"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceIOS, SourceAndroid, SourceAPI:
		return true
	}
	return false
}

// BodyShape is the quick-mode body silhouette preset.
type BodyShape string

const (
	BodyShapeRectangle        BodyShape = "rectangle"
	BodyShapeTriangle         BodyShape = "triangle"
	BodyShapeInvertedTriangle BodyShape = "inverted_triangle"
	BodyShapeHourglass        BodyShape = "hourglass"
	BodyShapeOval             BodyShape = "oval"
)

func (b BodyShape) Valid() bool {
	switch b {
	case BodyShapeRectangle, BodyShapeTriangle, BodyShapeInvertedTriangle, BodyShapeHourglass, BodyShapeOval:
		return true
	}
	return false
}

// AthleticLevel is the quick-mode fitness preset.
type AthleticLevel string

const (
	AthleticSedentary AthleticLevel = "sedentary"
	AthleticLight     AthleticLevel = "light"
	AthleticModerate  AthleticLevel = "moderate"
	AthleticActive    AthleticLevel = "active"
	AthleticAthletic  AthleticLevel = "athletic"
)

func (a AthleticLevel) Valid() bool {
	switch a {
	case AthleticSedentary, AthleticLight, AthleticModerate, AthleticActive, AthleticAthletic:
		return true
	}
	return false
}

// DefaultMetadata is applied to blank metadata fields on create.
func DefaultMetadata() Metadata {
	return Metadata{
		Gender:       GenderUnspecified,
		AgeRange:     AgeUnspecified,
		CreationMode: CreationManual,
		Source:       SourceWeb,
	}
}
