package normalize

import (
	"fmt"
	"strings"

	"questcal/internal/model"
	"questcal/internal/tz"
)

var signalVocabulary = map[string]model.Signal{
	"time": model.SignalTime, "timestamp": model.SignalTime, "clock": model.SignalTime,
	"시간": model.SignalTime, "시각": model.SignalTime, "시간인증": model.SignalTime,

	"location": model.SignalLocation, "gps": model.SignalLocation, "place": model.SignalLocation,
	"geofence": model.SignalLocation, "checkin": model.SignalLocation, "check-in": model.SignalLocation,
	"위치": model.SignalLocation, "장소": model.SignalLocation, "위치인증": model.SignalLocation,

	"photo": model.SignalPhoto, "picture": model.SignalPhoto, "camera": model.SignalPhoto,
	"image": model.SignalPhoto, "selfie": model.SignalPhoto,
	"사진": model.SignalPhoto, "카메라": model.SignalPhoto, "인증샷": model.SignalPhoto, "사진인증": model.SignalPhoto,

	"screentime": model.SignalScreentime, "screen-time": model.SignalScreentime, "screen_time": model.SignalScreentime,
	"스크린타임": model.SignalScreentime, "화면시간": model.SignalScreentime, "사용시간": model.SignalScreentime,

	"manual": model.SignalManual, "self": model.SignalManual, "self-report": model.SignalManual,
	"check": model.SignalManual, "checkbox": model.SignalManual,
	"수동": model.SignalManual, "직접": model.SignalManual, "체크": model.SignalManual, "자가보고": model.SignalManual,
	"수동인증": model.SignalManual, "직접체크": model.SignalManual,
}

// Signal maps one verification label to a Signal.
func Signal(raw any) (model.Signal, bool) {
	var text string
	switch v := raw.(type) {
	case model.Signal:
		text = string(v)
	case string:
		text = v
	default:
		return "", false
	}
	s, ok := signalVocabulary[compact(text)]
	return s, ok
}

// Signals maps a list of labels, dropping unknown ones. An empty result
// falls back to {manual}.
func Signals(raw any) []model.Signal {
	var out []model.Signal
	for _, item := range asSignalList(raw) {
		if s, ok := Signal(item); ok {
			out = append(out, s)
		}
	}
	out = model.SortSignals(out)
	if len(out) == 0 {
		return []model.Signal{model.SignalManual}
	}
	return out
}

func asSignalList(raw any) []any {
	switch v := raw.(type) {
	case []model.Signal:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		// "screen time" must survive as one label.
		parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '/' || r == '|' || r == '+' })
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	default:
		return asList(raw)
	}
}

// Milestones converts string labels (or maps with a label/title) into keyed
// milestones m1, m2, ... preserving order. Blank labels are skipped.
func Milestones(raw any) []model.Milestone {
	var out []model.Milestone
	for _, item := range asMilestoneList(raw) {
		var label string
		switch v := item.(type) {
		case string:
			label = v
		case map[string]any:
			if l, ok := firstKey(v, "label", "title", "name").(string); ok {
				label = l
			}
		}
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		out = append(out, model.Milestone{Key: fmt.Sprintf("m%d", len(out)+1), Label: label})
	}
	return out
}

func asMilestoneList(raw any) []any {
	switch v := raw.(type) {
	case string:
		return []any{v}
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []any:
		return v
	default:
		return nil
	}
}

// Timezone checks that raw names a zone known to the host database.
// A nil resolver uses tz.Default().
func Timezone(raw any, zones tz.Resolver) (string, bool) {
	name, ok := raw.(string)
	if !ok {
		return "", false
	}
	name = strings.TrimSpace(name)
	if zones == nil {
		zones = tz.Default()
	}
	if _, err := zones.Location(name); err != nil {
		return "", false
	}
	return name, true
}
