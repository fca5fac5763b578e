// Package collection holds the HumanBeing model and the keyed collection the
// shell commands operate on.
package collection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidElement is wrapped by every validation failure.
var ErrInvalidElement = errors.New("invalid element")

// MinX is the exclusive lower bound of Coordinates.X.
const MinX = -167

// DateLayout is the creation date format used for display and dumps.
const DateLayout = "2006-01-02"

// =============================================================================
// WEAPON TYPE
// =============================================================================

// WeaponType is ordered HAMMER < AXE < KNIFE.
type WeaponType int

const (
	WeaponUnset WeaponType = iota
	Hammer
	Axe
	Knife
)

// WeaponTypes lists the valid weapon types in ascending order.
var WeaponTypes = []WeaponType{Hammer, Axe, Knife}

func (w WeaponType) String() string {
	switch w {
	case Hammer:
		return "HAMMER"
	case Axe:
		return "AXE"
	case Knife:
		return "KNIFE"
	default:
		return "null"
	}
}

// ParseWeaponType maps a weapon name (case-insensitive) to its value.
func ParseWeaponType(s string) (WeaponType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HAMMER":
		return Hammer, nil
	case "AXE":
		return Axe, nil
	case "KNIFE":
		return Knife, nil
	}
	return WeaponUnset, fmt.Errorf("%w: unknown weapon type %q", ErrInvalidElement, s)
}

// =============================================================================
// ELEMENT TYPES
// =============================================================================

// Coordinates is a point with a required X and optional Y.
type Coordinates struct {
	X int64
	Y *float32
}

// Validate checks the X bound.
func (c Coordinates) Validate() error {
	if c.X <= MinX {
		return fmt.Errorf("%w: x must be greater than %d", ErrInvalidElement, MinX)
	}
	return nil
}

func (c Coordinates) String() string {
	return "(" + strconv.FormatInt(c.X, 10) + "; " + formatFloat32(c.Y) + ")"
}

// Car is an optional vehicle with a required name.
type Car struct {
	Name string
}

// Validate checks the car name.
func (c Car) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: car name is empty", ErrInvalidElement)
	}
	return nil
}

// HumanBeing is one element of the collection.
type HumanBeing struct {
	ID               int
	Name             string
	Coordinates      Coordinates
	CreationDate     time.Time
	RealHero         *bool
	HasToothpick     *bool
	ImpactSpeed      float32
	SoundtrackName   string
	MinutesOfWaiting *float64
	WeaponType       WeaponType
	Car              *Car
}

// Validate checks every field and reports the first violation.
func (h *HumanBeing) Validate() error {
	switch {
	case h.ID <= 0:
		return fmt.Errorf("%w: id must be positive", ErrInvalidElement)
	case h.Name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidElement)
	case h.CreationDate.IsZero():
		return fmt.Errorf("%w: creation date is not set", ErrInvalidElement)
	case h.SoundtrackName == "":
		return fmt.Errorf("%w: soundtrack name is empty", ErrInvalidElement)
	case h.MinutesOfWaiting != nil && *h.MinutesOfWaiting < 0:
		return fmt.Errorf("%w: minutes of waiting is negative", ErrInvalidElement)
	case h.WeaponType == WeaponUnset:
		return fmt.Errorf("%w: weapon type is not set", ErrInvalidElement)
	}
	if err := h.Coordinates.Validate(); err != nil {
		return err
	}
	if h.Car != nil {
		return h.Car.Validate()
	}
	return nil
}

// Clone returns a deep copy.
func (h *HumanBeing) Clone() *HumanBeing {
	c := *h
	if h.Coordinates.Y != nil {
		y := *h.Coordinates.Y
		c.Coordinates.Y = &y
	}
	if h.RealHero != nil {
		v := *h.RealHero
		c.RealHero = &v
	}
	if h.HasToothpick != nil {
		v := *h.HasToothpick
		c.HasToothpick = &v
	}
	if h.MinutesOfWaiting != nil {
		v := *h.MinutesOfWaiting
		c.MinutesOfWaiting = &v
	}
	if h.Car != nil {
		car := *h.Car
		c.Car = &car
	}
	return &c
}

// Outranks reports whether h should replace other: a faster impact speed,
// else longer waiting (nil counts as zero), else a later name.
func (h *HumanBeing) Outranks(other *HumanBeing) bool {
	if h.ImpactSpeed-other.ImpactSpeed > 0 {
		return true
	}
	if minutes(h.MinutesOfWaiting)-minutes(other.MinutesOfWaiting) > 0 {
		return true
	}
	return strings.Compare(h.Name, other.Name) > 0
}

func (h *HumanBeing) String() string {
	car := "null"
	if h.Car != nil {
		car = h.Car.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "HumanBeing{\"id\": %d, \"name\": %q, \"coordinates\": %s, ", h.ID, h.Name, h.Coordinates)
	fmt.Fprintf(&b, "\"creationDate\": %q, \"realHero\": %s, \"hasToothpick\": %s, ",
		h.CreationDate.Format(DateLayout), formatBool(h.RealHero), formatBool(h.HasToothpick))
	fmt.Fprintf(&b, "\"impactSpeed\": %s, \"soundtrackName\": %q, \"minutesOfWaiting\": %s, ",
		strconv.FormatFloat(float64(h.ImpactSpeed), 'f', -1, 32), h.SoundtrackName, formatFloat64(h.MinutesOfWaiting))
	fmt.Fprintf(&b, "\"weaponType\": %q, \"car\": %s}", h.WeaponType, car)
	return b.String()
}

// Today returns the current date at midnight UTC, the resolution creation
// dates are kept at.
func Today() time.Time {
	return DateOf(time.Now())
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func minutes(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatBool(v *bool) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatBool(*v)
}

func formatFloat32(v *float32) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(float64(*v), 'f', -1, 32)
}

func formatFloat64(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
