package event

import (
	"errors"
	"fmt"
)

// Type is a capture event code. Values follow CGEventType numbering.
type Type uint32

const (
	LeftMouseDown     Type = 1
	LeftMouseUp       Type = 2
	RightMouseDown    Type = 3
	RightMouseUp      Type = 4
	MouseMoved        Type = 5
	LeftMouseDragged  Type = 6
	RightMouseDragged Type = 7
	KeyDown           Type = 10
	KeyUp             Type = 11
	FlagsChanged      Type = 12
	ScrollWheel       Type = 22
	TabletPointer     Type = 23
	TabletProximity   Type = 24
	OtherMouseDown    Type = 25
	OtherMouseUp      Type = 26
	OtherMouseDragged Type = 27

	// Out of band codes. The capture source sends these when it has been
	// switched off; they never come from an input device.
	TapDisabledByTimeout   Type = 0xFFFFFFFE
	TapDisabledByUserInput Type = 0xFFFFFFFF
)

var (
	// ErrUnknownType is returned for codes outside the enumeration.
	ErrUnknownType = errors.New("unknown event type")

	// ErrUnclassified is returned for known codes that belong to no category.
	ErrUnclassified = errors.New("event type has no category")
)

var typeNames = map[Type]string{
	LeftMouseDown:          "LeftMouseDown",
	LeftMouseUp:            "LeftMouseUp",
	RightMouseDown:         "RightMouseDown",
	RightMouseUp:           "RightMouseUp",
	MouseMoved:             "MouseMoved",
	LeftMouseDragged:       "LeftMouseDragged",
	RightMouseDragged:      "RightMouseDragged",
	KeyDown:                "KeyDown",
	KeyUp:                  "KeyUp",
	FlagsChanged:           "FlagsChanged",
	ScrollWheel:            "ScrollWheel",
	TabletPointer:          "TabletPointer",
	TabletProximity:        "TabletProximity",
	OtherMouseDown:         "OtherMouseDown",
	OtherMouseUp:           "OtherMouseUp",
	OtherMouseDragged:      "OtherMouseDragged",
	TapDisabledByTimeout:   "TapDisabledByTimeout",
	TapDisabledByUserInput: "TapDisabledByUserInput",
}

// ParseType maps a raw code onto the enumeration.
// Codes that are not members, including 0, return ErrUnknownType.
func ParseType(code uint32) (Type, error) {
	t := Type(code)
	if _, ok := typeNames[t]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, code)
	}
	return t, nil
}

// ParseTypeName maps an enumeration name such as "KeyDown" onto its type.
func ParseTypeName(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// String returns the enumeration name, or the numeric code for non-members.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

// Category partitions event types by payload shape.
type Category uint8

const (
	CategoryKeyboard Category = iota + 1
	CategoryMouseClick
	CategoryMouseMove
	CategoryScroll
	CategoryOutOfBand
)

func (c Category) String() string {
	switch c {
	case CategoryKeyboard:
		return "keyboard"
	case CategoryMouseClick:
		return "mouse_click"
	case CategoryMouseMove:
		return "mouse_move"
	case CategoryScroll:
		return "scroll"
	case CategoryOutOfBand:
		return "out_of_band"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Category returns the category t belongs to.
// Every member maps to exactly one category except TabletProximity, which
// carries no payload this model records and yields ErrUnclassified.
func (t Type) Category() (Category, error) {
	switch {
	case t.IsKeyboard():
		return CategoryKeyboard, nil
	case t.IsMouseClick():
		return CategoryMouseClick, nil
	case t.IsMouseMove():
		return CategoryMouseMove, nil
	case t.IsScroll():
		return CategoryScroll, nil
	case t.IsOutOfBand():
		return CategoryOutOfBand, nil
	}
	if _, ok := typeNames[t]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, uint32(t))
	}
	return 0, fmt.Errorf("%w: %s", ErrUnclassified, t)
}

func (t Type) IsKeyboard() bool {
	return t == KeyDown || t == KeyUp || t == FlagsChanged
}

func (t Type) IsMouseClick() bool {
	switch t {
	case LeftMouseDown, LeftMouseUp, LeftMouseDragged,
		RightMouseDown, RightMouseUp, RightMouseDragged,
		OtherMouseDown, OtherMouseUp, OtherMouseDragged:
		return true
	}
	return false
}

func (t Type) IsMouseMove() bool {
	return t == MouseMoved || t == TabletPointer
}

func (t Type) IsScroll() bool {
	return t == ScrollWheel
}

func (t Type) IsOutOfBand() bool {
	return t == TapDisabledByTimeout || t == TapDisabledByUserInput
}
