// Package dump encodes the collection as an XML document and moves that
// document to and from its storage location.
package dump

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"heroshell/internal/collection"
)

// ErrMalformedDocument is returned when the document root cannot be parsed.
var ErrMalformedDocument = errors.New("malformed dump document")

// ElementError reports one humanBeing element that could not be decoded.
type ElementError struct {
	Index int
	ID    string
	Err   error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("humanBeing #%d (id=%q): %v", e.Index, e.ID, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

type xmlDocument struct {
	XMLName xml.Name   `xml:"humanBeings"`
	Items   []xmlHuman `xml:"humanBeing"`
}

type xmlHuman struct {
	ID               string         `xml:"id,attr"`
	Name             string         `xml:"name"`
	Coordinates      xmlCoordinates `xml:"coordinates"`
	CreationDate     string         `xml:"creationDate"`
	RealHero         string         `xml:"realHero"`
	HasToothpick     string         `xml:"hasToothpick"`
	ImpactSpeed      string         `xml:"impactSpeed"`
	SoundtrackName   string         `xml:"soundtrackName"`
	MinutesOfWaiting string         `xml:"minutesOfWaiting"`
	WeaponType       string         `xml:"weaponType"`
	Car              xmlCar         `xml:"car"`
}

type xmlCoordinates struct {
	X string `xml:"x"`
	Y string `xml:"y"`
}

type xmlCar struct {
	Name string `xml:"name"`
}

// Encode renders items as an indented XML document. Nil optional fields are
// written as empty elements.
func Encode(items []*collection.HumanBeing) ([]byte, error) {
	doc := xmlDocument{Items: make([]xmlHuman, 0, len(items))}
	for _, h := range items {
		doc.Items = append(doc.Items, toXML(h))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode dump: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses a dump. An empty document yields no elements. Elements that
// fail to convert are skipped and returned as ElementErrors alongside the
// good ones; only an unparseable document is a hard error.
func Decode(data []byte) ([]*collection.HumanBeing, []error, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	items := make([]*collection.HumanBeing, 0, len(doc.Items))
	var bad []error
	for i, x := range doc.Items {
		h, err := fromXML(x)
		if err == nil {
			err = h.Validate()
		}
		if err != nil {
			bad = append(bad, &ElementError{Index: i, ID: x.ID, Err: err})
			continue
		}
		items = append(items, h)
	}
	return items, bad, nil
}

func toXML(h *collection.HumanBeing) xmlHuman {
	x := xmlHuman{
		ID:   strconv.Itoa(h.ID),
		Name: h.Name,
		Coordinates: xmlCoordinates{
			X: strconv.FormatInt(h.Coordinates.X, 10),
		},
		CreationDate:   h.CreationDate.Format(collection.DateLayout),
		ImpactSpeed:    strconv.FormatFloat(float64(h.ImpactSpeed), 'f', -1, 32),
		SoundtrackName: h.SoundtrackName,
		WeaponType:     h.WeaponType.String(),
	}
	if h.Coordinates.Y != nil {
		x.Coordinates.Y = strconv.FormatFloat(float64(*h.Coordinates.Y), 'f', -1, 32)
	}
	if h.RealHero != nil {
		x.RealHero = strconv.FormatBool(*h.RealHero)
	}
	if h.HasToothpick != nil {
		x.HasToothpick = strconv.FormatBool(*h.HasToothpick)
	}
	if h.MinutesOfWaiting != nil {
		x.MinutesOfWaiting = strconv.FormatFloat(*h.MinutesOfWaiting, 'f', -1, 64)
	}
	if h.Car != nil {
		x.Car.Name = h.Car.Name
	}
	return x
}

func fromXML(x xmlHuman) (*collection.HumanBeing, error) {
	id, err := strconv.Atoi(strings.TrimSpace(x.ID))
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	date, err := time.Parse(collection.DateLayout, strings.TrimSpace(x.CreationDate))
	if err != nil {
		return nil, fmt.Errorf("creationDate: %w", err)
	}
	cx, err := strconv.ParseInt(strings.TrimSpace(x.Coordinates.X), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("coordinates/x: %w", err)
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(x.ImpactSpeed), 32)
	if err != nil {
		return nil, fmt.Errorf("impactSpeed: %w", err)
	}
	weapon, err := collection.ParseWeaponType(x.WeaponType)
	if err != nil {
		return nil, fmt.Errorf("weaponType: %w", err)
	}

	h := &collection.HumanBeing{
		ID:             id,
		Name:           x.Name,
		Coordinates:    collection.Coordinates{X: cx},
		CreationDate:   date,
		ImpactSpeed:    float32(speed),
		SoundtrackName: x.SoundtrackName,
		WeaponType:     weapon,
	}

	if h.Coordinates.Y, err = optFloat32(x.Coordinates.Y); err != nil {
		return nil, fmt.Errorf("coordinates/y: %w", err)
	}
	if h.RealHero, err = optBool(x.RealHero); err != nil {
		return nil, fmt.Errorf("realHero: %w", err)
	}
	if h.HasToothpick, err = optBool(x.HasToothpick); err != nil {
		return nil, fmt.Errorf("hasToothpick: %w", err)
	}
	if h.MinutesOfWaiting, err = optFloat64(x.MinutesOfWaiting); err != nil {
		return nil, fmt.Errorf("minutesOfWaiting: %w", err)
	}
	if name := strings.TrimSpace(x.Car.Name); name != "" {
		h.Car = &collection.Car{Name: x.Car.Name}
	}
	return h, nil
}

func optFloat32(s string) (*float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return nil, err
	}
	f := float32(v)
	return &f, nil
}

func optFloat64(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optBool(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
