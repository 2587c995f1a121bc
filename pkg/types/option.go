package types

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// OptionKind is the declared value type of an option.
type OptionKind int

const (
	KindInt OptionKind = iota
	KindFloat
	KindBool
	KindString
	KindColor
	KindChoice
	KindList
	KindDict
)

var kindNames = [...]string{"int", "float", "bool", "string", "color", "choice", "list", "dict"}

func (k OptionKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// OptionValue is a tagged union holding one option value of its kind.
type OptionValue struct {
	kind OptionKind
	i    int64
	f    float64
	b    bool
	s    string
	list []any
	dict map[string]any
}

// IntValue returns an int option value.
func IntValue(v int64) OptionValue { return OptionValue{kind: KindInt, i: v} }

// FloatValue returns a float option value.
func FloatValue(v float64) OptionValue { return OptionValue{kind: KindFloat, f: v} }

// BoolValue returns a bool option value.
func BoolValue(v bool) OptionValue { return OptionValue{kind: KindBool, b: v} }

// StringValue returns a string option value.
func StringValue(v string) OptionValue { return OptionValue{kind: KindString, s: v} }

// ColorValue returns a color option value. The color is not validated here;
// ParseOptionValue and the option store do that.
func ColorValue(v string) OptionValue { return OptionValue{kind: KindColor, s: v} }

// ChoiceValue returns a choice option value.
func ChoiceValue(v string) OptionValue { return OptionValue{kind: KindChoice, s: v} }

// ListValue returns a list option value.
func ListValue(v ...any) OptionValue { return OptionValue{kind: KindList, list: v} }

// DictValue returns a dict option value.
func DictValue(v map[string]any) OptionValue { return OptionValue{kind: KindDict, dict: v} }

// Kind returns the tag of the value.
func (v OptionValue) Kind() OptionKind { return v.kind }

// Int returns the value of an int option.
func (v OptionValue) Int() int64 { return v.i }

// Float returns the value of a float option. Int values are converted.
func (v OptionValue) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Bool returns the value of a bool option.
func (v OptionValue) Bool() bool { return v.b }

// String returns the canonical encoding of the value.
func (v OptionValue) String() string { return v.Format() }

// Str returns the text of a string, color or choice option.
func (v OptionValue) Str() string { return v.s }

// List returns the elements of a list option.
func (v OptionValue) List() []any { return v.list }

// Dict returns the entries of a dict option.
func (v OptionValue) Dict() map[string]any { return v.dict }

// Format returns the canonical string encoding stored in the option table.
func (v OptionValue) Format() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindColor:
		if c, err := NormalizeColor(v.s); err == nil {
			return c
		}
		return v.s
	case KindList:
		if v.list == nil {
			return "[]"
		}
		data, _ := json.Marshal(v.list)
		return string(data)
	case KindDict:
		if v.dict == nil {
			return "{}"
		}
		data, _ := json.Marshal(v.dict)
		return string(data)
	}
	return v.s
}

// Equal compares two values by kind and canonical encoding.
func (v OptionValue) Equal(o OptionValue) bool {
	return v.kind == o.kind && v.Format() == o.Format()
}

// ParseOptionValue decodes the canonical encoding of kind.
func ParseOptionValue(kind OptionKind, s string) (OptionValue, error) {
	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return OptionValue{}, fmt.Errorf("%w: %q is not an int", ErrInvalidOptionValue, s)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return OptionValue{}, fmt.Errorf("%w: %q is not a float", ErrInvalidOptionValue, s)
		}
		return FloatValue(f), nil
	case KindBool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return BoolValue(true), nil
		case "false", "0", "no", "off", "":
			return BoolValue(false), nil
		}
		return OptionValue{}, fmt.Errorf("%w: %q is not a bool", ErrInvalidOptionValue, s)
	case KindString:
		return StringValue(s), nil
	case KindColor:
		c, err := NormalizeColor(s)
		if err != nil {
			return OptionValue{}, err
		}
		return ColorValue(c), nil
	case KindChoice:
		return ChoiceValue(s), nil
	case KindList:
		var l []any
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return OptionValue{}, fmt.Errorf("%w: %q is not a list: %v", ErrInvalidOptionValue, s, err)
		}
		return ListValue(l...), nil
	case KindDict:
		var d map[string]any
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return OptionValue{}, fmt.Errorf("%w: %q is not a dict: %v", ErrInvalidOptionValue, s, err)
		}
		return DictValue(d), nil
	}
	return OptionValue{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidOptionValue, int(kind))
}

// OptionSpec declares an option: its key, kind, default and bounds.
type OptionSpec struct {
	Key         string
	Category    string
	DisplayName string
	Tooltip     string
	Kind        OptionKind
	Default     OptionValue
	Min, Max    *float64
	Choices     []string
	Hidden      bool
}

// Check validates a value against the declaration and returns it in
// canonical form.
func (s *OptionSpec) Check(v OptionValue) (OptionValue, error) {
	if v.kind == KindInt && s.Kind == KindFloat {
		v = FloatValue(float64(v.i))
	}
	if v.kind != s.Kind {
		return OptionValue{}, fmt.Errorf("%w: %s expects %s, got %s",
			ErrInvalidOptionValue, s.Key, s.Kind, v.kind)
	}
	switch s.Kind {
	case KindInt, KindFloat:
		f := v.Float()
		if math.IsNaN(f) {
			return OptionValue{}, fmt.Errorf("%w: %s is NaN", ErrInvalidOptionValue, s.Key)
		}
		if s.Min != nil && f < *s.Min {
			return OptionValue{}, fmt.Errorf("%w: %s below minimum %g", ErrInvalidOptionValue, s.Key, *s.Min)
		}
		if s.Max != nil && f > *s.Max {
			return OptionValue{}, fmt.Errorf("%w: %s above maximum %g", ErrInvalidOptionValue, s.Key, *s.Max)
		}
	case KindColor:
		c, err := NormalizeColor(v.s)
		if err != nil {
			return OptionValue{}, err
		}
		v = ColorValue(c)
	case KindChoice:
		if !slices.Contains(s.Choices, v.s) {
			return OptionValue{}, fmt.Errorf("%w: %s must be one of %v", ErrInvalidOptionValue, s.Key, s.Choices)
		}
	}
	return v, nil
}

// Option is the effective value of a declared option.
type Option struct {
	Spec  *OptionSpec
	Value OptionValue
	// Stored reports whether a row exists, i.e. the value differs from the default.
	Stored bool
}

func bound(v float64) *float64 { return &v }

// DefaultOptions declares the options known to the project file.
var DefaultOptions = []OptionSpec{
	{Key: "buffer_size", Category: "Buffer", DisplayName: "Buffer frames", Kind: KindInt, Default: IntValue(300), Min: bound(0),
		Tooltip: "How many decoded frames to keep in memory."},
	{Key: "buffer_memory", Category: "Buffer", DisplayName: "Buffer memory", Kind: KindInt, Default: IntValue(0), Min: bound(0),
		Tooltip: "Memory limit for decoded frames in MB, 0 for no limit."},
	{Key: "threaded_image_load", Category: "Buffer", DisplayName: "Load images in background", Kind: KindBool, Default: BoolValue(true)},

	{Key: "rotation", Category: "Display", DisplayName: "Rotation", Kind: KindInt, Default: IntValue(0), Min: bound(0), Max: bound(360)},
	{Key: "rotation_steps", Category: "Display", DisplayName: "Rotation steps", Kind: KindInt, Default: IntValue(90), Min: bound(1), Max: bound(360)},
	{Key: "hide_interfaces", Category: "Display", DisplayName: "Hide interfaces", Kind: KindBool, Default: BoolValue(true)},
	{Key: "interpolation_type", Category: "Display", DisplayName: "Interpolation", Kind: KindChoice, Default: ChoiceValue("nearest"),
		Choices: []string{"nearest", "linear", "cubic"}},

	{Key: "contrast_gamma", Category: "Contrast", DisplayName: "Gamma", Kind: KindFloat, Default: FloatValue(1), Min: bound(0)},
	{Key: "contrast_min", Category: "Contrast", DisplayName: "Minimum", Kind: KindFloat, Default: FloatValue(0)},
	{Key: "contrast_max", Category: "Contrast", DisplayName: "Maximum", Kind: KindFloat, Default: FloatValue(255)},
	{Key: "auto_contrast", Category: "Contrast", DisplayName: "Auto contrast", Kind: KindBool, Default: BoolValue(false)},

	{Key: "play_start", Category: "Timeline", DisplayName: "Play start", Kind: KindFloat, Default: FloatValue(0), Min: bound(0)},
	{Key: "play_end", Category: "Timeline", DisplayName: "Play end", Kind: KindFloat, Default: FloatValue(1), Min: bound(0)},
	{Key: "playing", Category: "Timeline", DisplayName: "Playing", Kind: KindBool, Default: BoolValue(false), Hidden: true},
	{Key: "play_loop", Category: "Timeline", DisplayName: "Loop", Kind: KindBool, Default: BoolValue(false)},
	{Key: "fps", Category: "Timeline", DisplayName: "Frame rate", Kind: KindFloat, Default: FloatValue(0), Min: bound(0)},
	{Key: "skip", Category: "Timeline", DisplayName: "Skip frames", Kind: KindInt, Default: IntValue(1), Min: bound(1)},
	{Key: "timeline_hide", Category: "Timeline", DisplayName: "Hide timeline", Kind: KindBool, Default: BoolValue(false)},
	{Key: "timestamp_formats", Category: "Timeline", DisplayName: "Filename timestamp formats", Kind: KindList,
		Default: ListValue(`%Y%m%d-%H%M%S-%f`, `%Y%m%d-%H%M%S`)},

	{Key: "types", Category: "Marker", DisplayName: "Default marker types", Kind: KindDict,
		Default: DictValue(map[string]any{"marker": []any{"#FF0000", 0}})},
	{Key: "tracking_connect_nearest", Category: "Marker", DisplayName: "Connect nearest", Kind: KindBool, Default: BoolValue(false)},
	{Key: "tracking_show_trailing", Category: "Marker", DisplayName: "Show trailing frames", Kind: KindInt, Default: IntValue(-1), Min: bound(-1)},
	{Key: "tracking_show_leading", Category: "Marker", DisplayName: "Show leading frames", Kind: KindInt, Default: IntValue(0), Min: bound(-1)},
	{Key: "tracking_hide_trailing", Category: "Marker", DisplayName: "Hide trailing frames", Kind: KindInt, Default: IntValue(2), Min: bound(0)},
	{Key: "tracking_hide_leading", Category: "Marker", DisplayName: "Hide leading frames", Kind: KindInt, Default: IntValue(2), Min: bound(0)},
	{Key: "marker_color", Category: "Marker", DisplayName: "Selection color", Kind: KindColor, Default: ColorValue("#FFFF00")},

	{Key: "mask_opacity", Category: "Mask", DisplayName: "Opacity", Kind: KindFloat, Default: FloatValue(0.5), Min: bound(0), Max: bound(1)},
	{Key: "mask_brush_size", Category: "Mask", DisplayName: "Brush size", Kind: KindInt, Default: IntValue(10), Min: bound(1)},
	{Key: "mask_interface_hidden", Category: "Mask", DisplayName: "Hide mask interface", Kind: KindBool, Default: BoolValue(false)},

	{Key: "export_type", Category: "Export", DisplayName: "Export type", Kind: KindChoice, Default: ChoiceValue("video"),
		Choices: []string{"video", "images", "gif", "single", "ladder"}},
	{Key: "export_video_filename", Category: "Export", DisplayName: "Video file", Kind: KindString, Default: StringValue("export/export.avi")},
	{Key: "export_image_filename", Category: "Export", DisplayName: "Image files", Kind: KindString, Default: StringValue("export/images%d.jpg")},
	{Key: "export_gif_filename", Category: "Export", DisplayName: "GIF file", Kind: KindString, Default: StringValue("export/export.gif")},
	{Key: "export_single_image_filename", Category: "Export", DisplayName: "Single image", Kind: KindString, Default: StringValue("export/images%d.png")},
	{Key: "export_timestamp", Category: "Export", DisplayName: "Burn in timestamps", Kind: KindBool, Default: BoolValue(false)},
	{Key: "export_custom_time", Category: "Export", DisplayName: "Custom time", Kind: KindBool, Default: BoolValue(false)},
	{Key: "export_custom_time_delta", Category: "Export", DisplayName: "Custom time delta", Kind: KindFloat, Default: FloatValue(1), Min: bound(0)},
	{Key: "export_time_font_size", Category: "Export", DisplayName: "Font size", Kind: KindInt, Default: IntValue(50), Min: bound(1)},
	{Key: "export_time_font_color", Category: "Export", DisplayName: "Font color", Kind: KindColor, Default: ColorValue("#FFFFFF")},
	{Key: "video_codec", Category: "Export", DisplayName: "Codec", Kind: KindChoice, Default: ChoiceValue("libx264"),
		Choices: []string{"libx264", "mpeg4", "rawvideo"}},
	{Key: "video_quality", Category: "Export", DisplayName: "Quality", Kind: KindInt, Default: IntValue(5), Min: bound(0), Max: bound(10)},

	{Key: "info_hud_string", Category: "Info Hud", DisplayName: "Text", Kind: KindString, Default: StringValue("")},
	{Key: "info_hud_regex", Category: "Info Hud", DisplayName: "Filename regex", Kind: KindString, Default: StringValue("")},
}

// LookupOption returns the declaration of key in specs.
func LookupOption(specs []OptionSpec, key string) (*OptionSpec, bool) {
	for i := range specs {
		if specs[i].Key == key {
			return &specs[i], true
		}
	}
	return nil, false
}
