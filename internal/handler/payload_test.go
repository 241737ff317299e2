package handler

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
)

func parsePayload(t *testing.T, body string) *avatarPayload {
	t.Helper()
	var p avatarPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

func TestToPatch_AbsentNullAndValue(t *testing.T) {
	patch, err := parsePayload(t, `{}`).toPatch()
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())

	patch, err = parsePayload(t, `{"name": null, "metadata": null}`).toPatch()
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty(), "null name and metadata are ignored")

	patch, err = parsePayload(t, `{"morphTargets": null, "quickModeSettings": null}`).toPatch()
	require.NoError(t, err)
	require.NotNil(t, patch.MorphTargets)
	assert.Empty(t, *patch.MorphTargets)
	assert.True(t, patch.SetQuickMode)
	assert.Nil(t, patch.QuickMode)

	patch, err = parsePayload(t, `{"metadata": {"source": "android"}, "basicMeasurements": {"h": 1}}`).toPatch()
	require.NoError(t, err)
	require.NotNil(t, patch.Metadata)
	assert.Nil(t, patch.Metadata.Gender)
	assert.Equal(t, model.SourceAndroid, *patch.Metadata.Source)
	assert.Equal(t, model.Measurements{"h": 1}, *patch.BasicMeasurements)
	assert.Nil(t, patch.BodyMeasurements)
}

func TestToNewAvatar_AbsentSections(t *testing.T) {
	in, err := parsePayload(t, `{"name": null, "quickModeSettings": null}`).toNewAvatar()
	require.NoError(t, err)
	assert.Empty(t, in.Name)
	assert.Nil(t, in.BasicMeasurements)
	assert.Nil(t, in.QuickMode)
}

func TestDecodeMorphTargets(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.MorphTargets
	}{
		{"object", `{"a": 1, "b": -0.5}`, model.MorphTargets{"a": 1, "b": -0.5}},
		{"id value list", `[{"id": "a", "value": 1}, {"id": "b", "value": 2}]`, model.MorphTargets{"a": 1, "b": 2}},
		{"pairs", `[["a", 1], ["b", 2]]`, model.MorphTargets{"a": 1, "b": 2}},
		{"mixed with repeat", `[["a", 1], {"id": "a", "value": 3}]`, model.MorphTargets{"a": 3}},
		{"empty list", `[]`, model.MorphTargets{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMorphTargets(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMorphTargets_Rejects(t *testing.T) {
	for _, raw := range []string{
		`"jaw"`,
		`[1]`,
		`[["a", "x"]]`,
		`[[1, 2]]`,
		`[{"value": 1}]`,
		`[["a", 1, 2]]`,
	} {
		_, err := decodeMorphTargets(json.RawMessage(raw))
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr), raw)
		assert.Equal(t, "morphTargets", appErr.Field, raw)
	}
}

func TestDecodeValues_NamesKeyInMessage(t *testing.T) {
	_, err := decodeValues("bodyMeasurements", json.RawMessage(`{"waist": "70"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"waist"`)
	assert.Contains(t, err.Error(), "bodyMeasurements")
}
