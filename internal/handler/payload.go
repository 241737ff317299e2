package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
)

const maxBodyBytes = 1 << 20

// avatarPayload keeps every section raw so the decoder can tell an absent
// key (len 0) from an explicit null ("null") from a value.
type avatarPayload struct {
	Name              json.RawMessage `json:"name"`
	Metadata          json.RawMessage `json:"metadata"`
	BasicMeasurements json.RawMessage `json:"basicMeasurements"`
	BodyMeasurements  json.RawMessage `json:"bodyMeasurements"`
	MorphTargets      json.RawMessage `json:"morphTargets"`
	QuickMode         json.RawMessage `json:"quickModeSettings"`
}

func readPayload(w http.ResponseWriter, r *http.Request) (*avatarPayload, error) {
	var p avatarPayload
	if err := decodeBody(w, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// decodeBody reads a single JSON object. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperror.ValidationFailed("body", "request body is too large or unreadable")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if body[0] != '{' {
		return apperror.ValidationFailed("body", "request body must be a JSON object")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperror.ValidationFailed("body", "request body is not valid JSON")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (p *avatarPayload) toNewAvatar() (model.NewAvatar, error) {
	var (
		in  model.NewAvatar
		err error
	)
	if len(p.Name) > 0 && !isNull(p.Name) {
		if in.Name, err = decodeString("name", p.Name); err != nil {
			return in, err
		}
	}
	if len(p.Metadata) > 0 && !isNull(p.Metadata) {
		mp, err := decodeMetadata(p.Metadata)
		if err != nil {
			return in, err
		}
		in.Metadata = mp.Apply(model.Metadata{})
	}
	if in.BasicMeasurements, err = decodeValues("basicMeasurements", p.BasicMeasurements); err != nil {
		return in, err
	}
	if in.BodyMeasurements, err = decodeValues("bodyMeasurements", p.BodyMeasurements); err != nil {
		return in, err
	}
	if in.MorphTargets, err = decodeMorphTargets(p.MorphTargets); err != nil {
		return in, err
	}
	if len(p.QuickMode) > 0 && !isNull(p.QuickMode) {
		if in.QuickMode, err = decodeQuickMode(p.QuickMode); err != nil {
			return in, err
		}
	}
	return in, nil
}

// toPatch maps present keys to patch fields. A null collection clears it and
// a null quickModeSettings deletes the record; a null name or metadata is
// ignored.
func (p *avatarPayload) toPatch() (model.AvatarPatch, error) {
	var patch model.AvatarPatch

	if len(p.Name) > 0 && !isNull(p.Name) {
		name, err := decodeString("name", p.Name)
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if len(p.Metadata) > 0 && !isNull(p.Metadata) {
		mp, err := decodeMetadata(p.Metadata)
		if err != nil {
			return patch, err
		}
		patch.Metadata = mp
	}
	if len(p.BasicMeasurements) > 0 {
		m, err := decodeValues("basicMeasurements", p.BasicMeasurements)
		if err != nil {
			return patch, err
		}
		m = orEmpty(m)
		patch.BasicMeasurements = &m
	}
	if len(p.BodyMeasurements) > 0 {
		m, err := decodeValues("bodyMeasurements", p.BodyMeasurements)
		if err != nil {
			return patch, err
		}
		m = orEmpty(m)
		patch.BodyMeasurements = &m
	}
	if len(p.MorphTargets) > 0 {
		m, err := decodeMorphTargets(p.MorphTargets)
		if err != nil {
			return patch, err
		}
		if m == nil {
			m = model.MorphTargets{}
		}
		patch.MorphTargets = &m
	}
	if len(p.QuickMode) > 0 {
		patch.SetQuickMode = true
		if !isNull(p.QuickMode) {
			q, err := decodeQuickMode(p.QuickMode)
			if err != nil {
				return patch, err
			}
			patch.QuickMode = q
		}
	}
	return patch, nil
}

func orEmpty(m model.Measurements) model.Measurements {
	if m == nil {
		return model.Measurements{}
	}
	return m
}

func decodeString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apperror.ValidationFailed(field, field+" must be a string")
	}
	return s, nil
}

// decodeObject splits a JSON object into its raw members.
func decodeObject(section string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, apperror.ValidationFailed(section, section+" must be an object")
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, apperror.ValidationFailed(section, section+" must be an object")
	}
	return members, nil
}

func decodeMetadata(raw json.RawMessage) (*model.MetadataPatch, error) {
	members, err := decodeObject("metadata", raw)
	if err != nil {
		return nil, err
	}

	str := func(key string) (*string, error) {
		v, ok := members[key]
		if !ok || isNull(v) {
			return nil, nil
		}
		s, err := decodeString("metadata."+key, v)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	var mp model.MetadataPatch
	if s, err := str("gender"); err != nil {
		return nil, err
	} else if s != nil {
		g := model.Gender(*s)
		mp.Gender = &g
	}
	if s, err := str("ageRange"); err != nil {
		return nil, err
	} else if s != nil {
		a := model.AgeRange(*s)
		mp.AgeRange = &a
	}
	if s, err := str("creationMode"); err != nil {
		return nil, err
	} else if s != nil {
		c := model.CreationMode(*s)
		mp.CreationMode = &c
	}
	if s, err := str("source"); err != nil {
		return nil, err
	} else if s != nil {
		src := model.Source(*s)
		mp.Source = &src
	}
	return &mp, nil
}

// decodeValues reads a key -> number object. Absent or null yields nil.
func decodeValues(section string, raw json.RawMessage) (model.Measurements, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	members, err := decodeObject(section, raw)
	if err != nil {
		return nil, err
	}
	out := make(model.Measurements, len(members))
	for key, v := range members {
		f, err := decodeNumber(section, key, v)
		if err != nil {
			return nil, err
		}
		out[key] = f
	}
	return out, nil
}

func decodeNumber(section, key string, raw json.RawMessage) (float64, error) {
	var f float64
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !isNumberStart(trimmed[0]) || json.Unmarshal(trimmed, &f) != nil {
		return 0, apperror.ValidationFailed(section,
			fmt.Sprintf("value of %q in %s must be a number", key, section))
	}
	return f, nil
}

func isNumberStart(c byte) bool {
	return c == '-' || (c >= '0' && c <= '9')
}

// decodeMorphTargets accepts an object, a list of {"id", "value"} objects
// or a list of [id, value] pairs. Repeated ids keep the last value.
func decodeMorphTargets(raw json.RawMessage) (model.MorphTargets, error) {
	const section = "morphTargets"
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '{' {
		m, err := decodeValues(section, trimmed)
		return model.MorphTargets(m), err
	}
	if trimmed[0] != '[' {
		return nil, apperror.ValidationFailed(section, "morphTargets must be an object or a list")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, apperror.ValidationFailed(section, "morphTargets must be an object or a list")
	}
	out := make(model.MorphTargets, len(items))
	for i, item := range items {
		id, value, err := decodeMorphItem(i, item)
		if err != nil {
			return nil, err
		}
		out[id] = value
	}
	return out, nil
}

func decodeMorphItem(i int, item json.RawMessage) (string, float64, error) {
	const section = "morphTargets"
	bad := apperror.ValidationFailed(section,
		fmt.Sprintf("morphTargets[%d] must be {\"id\", \"value\"} or [id, value]", i))

	item = bytes.TrimSpace(item)
	var idRaw, valueRaw json.RawMessage
	switch {
	case len(item) > 0 && item[0] == '{':
		var obj struct {
			ID    json.RawMessage `json:"id"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return "", 0, bad
		}
		idRaw, valueRaw = obj.ID, obj.Value
	case len(item) > 0 && item[0] == '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) != 2 {
			return "", 0, bad
		}
		idRaw, valueRaw = pair[0], pair[1]
	default:
		return "", 0, bad
	}

	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return "", 0, bad
	}
	value, err := decodeNumber(section, id, valueRaw)
	if err != nil {
		return "", 0, err
	}
	return id, value, nil
}

func decodeQuickMode(raw json.RawMessage) (*model.QuickModeSettings, error) {
	const section = "quickModeSettings"
	members, err := decodeObject(section, raw)
	if err != nil {
		return nil, err
	}

	var q model.QuickModeSettings
	if v, ok := members["bodyShape"]; ok && !isNull(v) {
		s, err := decodeString(section+".bodyShape", v)
		if err != nil {
			return nil, err
		}
		q.BodyShape = model.BodyShape(s)
	}
	if v, ok := members["athleticLevel"]; ok && !isNull(v) {
		s, err := decodeString(section+".athleticLevel", v)
		if err != nil {
			return nil, err
		}
		q.AthleticLevel = model.AthleticLevel(s)
	}
	if q.Measurements, err = decodeValues(section+".measurements", members["measurements"]); err != nil {
		return nil, err
	}
	return &q, nil
}
