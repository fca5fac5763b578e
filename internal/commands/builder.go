// Package commands implements the heroshell command set over the HumanBeing
// collection.
package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"heroshell/internal/collection"
)

// ErrInputExhausted is returned when the active source ends mid-element.
var ErrInputExhausted = errors.New("input ended while reading element")

// Prompter reads element fields from the active input source.
type Prompter interface {
	// Ask shows message when the operator is reading, then returns the next line.
	Ask(message string) (string, error)
	// Note shows message when the operator is reading.
	Note(message string)
	// Warn reports an invalid value.
	Warn(message string)
}

const msgRetry = "Invalid value! Try again"

// ElementBuilder reads a HumanBeing field by field, re-asking on invalid
// values. Optional fields accept an empty line as "no value".
type ElementBuilder struct {
	p Prompter
}

// NewElementBuilder creates a builder over p.
func NewElementBuilder(p Prompter) *ElementBuilder {
	return &ElementBuilder{p: p}
}

// Build reads every user-supplied field. id and created are assigned by the
// caller.
func (b *ElementBuilder) Build(id int, created time.Time) (*collection.HumanBeing, error) {
	b.p.Note("Creating a HumanBeing")

	h := &collection.HumanBeing{ID: id, CreationDate: created}
	var err error

	if h.Name, err = b.required("Enter name (name). Must not be empty"); err != nil {
		return nil, err
	}
	if h.Coordinates, err = b.coordinates(); err != nil {
		return nil, err
	}
	if h.RealHero, err = b.choice("Is a real hero (realHero)? 1 - yes, 2 - no. Empty for no value"); err != nil {
		return nil, err
	}
	if h.HasToothpick, err = b.choice("Has a toothpick (hasToothpick)? 1 - yes, 2 - no. Empty for no value"); err != nil {
		return nil, err
	}
	if h.ImpactSpeed, err = b.impactSpeed(); err != nil {
		return nil, err
	}
	if h.SoundtrackName, err = b.required("Enter soundtrack name (soundtrackName). Must not be empty"); err != nil {
		return nil, err
	}
	if h.MinutesOfWaiting, err = b.minutes(); err != nil {
		return nil, err
	}
	if h.WeaponType, err = b.weapon(); err != nil {
		return nil, err
	}
	if h.Car, err = b.car(); err != nil {
		return nil, err
	}
	return h, nil
}

func (b *ElementBuilder) ask(message string) (string, error) {
	line, err := b.p.Ask(message)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInputExhausted, err)
	}
	return strings.TrimSpace(line), nil
}

func (b *ElementBuilder) required(message string) (string, error) {
	for {
		v, err := b.ask(message)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) coordinates() (collection.Coordinates, error) {
	b.p.Note("Creating coordinates (coordinates). Coordinates are required")

	var c collection.Coordinates
	for {
		v, err := b.ask(fmt.Sprintf("Enter x (x). Example: 314. Must be greater than %d", collection.MinX))
		if err != nil {
			return c, err
		}
		x, perr := strconv.ParseInt(v, 10, 64)
		if perr == nil && x > collection.MinX {
			c.X = x
			break
		}
		b.p.Warn(msgRetry)
	}
	for {
		v, err := b.ask("Enter y (y). Example: 3.14. Empty for no value")
		if err != nil {
			return c, err
		}
		if v == "" {
			return c, nil
		}
		y, perr := strconv.ParseFloat(v, 32)
		if perr == nil {
			f := float32(y)
			c.Y = &f
			return c, nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) choice(message string) (*bool, error) {
	for {
		v, err := b.ask(message)
		if err != nil {
			return nil, err
		}
		switch v {
		case "":
			return nil, nil
		case "1":
			t := true
			return &t, nil
		case "2":
			f := false
			return &f, nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) impactSpeed() (float32, error) {
	for {
		v, err := b.ask("Enter impact speed (impactSpeed). Example: 3.14. Must not be empty")
		if err != nil {
			return 0, err
		}
		s, perr := strconv.ParseFloat(v, 32)
		if perr == nil {
			return float32(s), nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) minutes() (*float64, error) {
	for {
		v, err := b.ask("Enter minutes of waiting (minutesOfWaiting). Example: 2.71. Not negative. Empty for no value")
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, nil
		}
		m, perr := strconv.ParseFloat(v, 64)
		if perr == nil && m >= 0 {
			return &m, nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) weapon() (collection.WeaponType, error) {
	for {
		v, err := b.ask("Enter weapon type (weaponType). 1 - hammer, 2 - axe, 3 - knife. Must not be empty")
		if err != nil {
			return collection.WeaponUnset, err
		}
		if n, perr := strconv.Atoi(v); perr == nil && n >= 1 && n <= len(collection.WeaponTypes) {
			return collection.WeaponTypes[n-1], nil
		}
		if w, perr := collection.ParseWeaponType(v); perr == nil {
			return w, nil
		}
		b.p.Warn(msgRetry)
	}
}

func (b *ElementBuilder) car() (*collection.Car, error) {
	b.p.Note("Creating a car (car)")
	for {
		v, err := b.ask("Create a car? 1 - yes, 2 - no")
		if err != nil {
			return nil, err
		}
		switch v {
		case "1":
			name, err := b.required("Enter car name (name). Must not be empty")
			if err != nil {
				return nil, err
			}
			return &collection.Car{Name: name}, nil
		case "2":
			return nil, nil
		}
		b.p.Warn(msgRetry)
	}
}
