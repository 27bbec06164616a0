package riemann

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Riemann protocol.
const (
	eventTime        protowire.Number = 1
	eventState       protowire.Number = 2
	eventService     protowire.Number = 3
	eventHost        protowire.Number = 4
	eventDescription protowire.Number = 5
	eventTags        protowire.Number = 7
	eventTTL         protowire.Number = 8
	eventAttributes  protowire.Number = 9
	eventMetricF     protowire.Number = 15

	attributeKey   protowire.Number = 1
	attributeValue protowire.Number = 2

	msgOK     protowire.Number = 2
	msgError  protowire.Number = 3
	msgEvents protowire.Number = 6
)

var errWireType = errors.New("unexpected wire type")

// Marshal encodes m as a Riemann protocol buffers message.
func (m *Msg) Marshal() []byte {
	var b []byte
	if m.OK != nil {
		b = protowire.AppendTag(b, msgOK, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(*m.OK))
	}
	b = appendString(b, msgError, m.Error)
	for _, ev := range m.Events {
		b = protowire.AppendTag(b, msgEvents, protowire.BytesType)
		b = protowire.AppendBytes(b, ev.Marshal())
	}
	return b
}

// Marshal encodes ev. Attributes are sorted by key so that the encoding
// is stable.
func (ev *Event) Marshal() []byte {
	var b []byte
	if ev.Time != 0 {
		b = protowire.AppendTag(b, eventTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.Time))
	}
	b = appendString(b, eventState, ev.State)
	b = appendString(b, eventService, ev.Service)
	b = appendString(b, eventHost, ev.Host)
	b = appendString(b, eventDescription, ev.Description)
	for _, tag := range ev.Tags {
		b = protowire.AppendTag(b, eventTags, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}
	if ev.TTL != 0 {
		b = protowire.AppendTag(b, eventTTL, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(ev.TTL))
	}

	keys := make([]string, 0, len(ev.Attributes))
	for k := range ev.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		var attr []byte
		attr = appendString(attr, attributeKey, k)
		attr = appendString(attr, attributeValue, ev.Attributes[k])
		b = protowire.AppendTag(b, eventAttributes, protowire.BytesType)
		b = protowire.AppendBytes(b, attr)
	}

	b = protowire.AppendTag(b, eventMetricF, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(ev.Metric))
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes a message. Unknown fields are skipped.
func (m *Msg) Unmarshal(b []byte) error {
	*m = Msg{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == msgOK && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			ok := protowire.DecodeBool(v)
			m.OK = &ok
			return n, nil
		case num == msgError && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			m.Error = s
			return n, nil
		case num == msgEvents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			ev := &Event{}
			if err := ev.Unmarshal(v); err != nil {
				return 0, fmt.Errorf("event %d: %w", len(m.Events), err)
			}
			m.Events = append(m.Events, ev)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// Unmarshal decodes an event. Unknown fields are skipped.
func (ev *Event) Unmarshal(b []byte) error {
	*ev = Event{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case eventTime:
			if typ != protowire.VarintType {
				return 0, fmt.Errorf("%w for time: %d", errWireType, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			ev.Time = int64(v)
			return n, nil
		case eventState, eventService, eventHost, eventDescription, eventTags:
			if typ != protowire.BytesType {
				return 0, fmt.Errorf("%w for field %d: %d", errWireType, num, typ)
			}
			s, n := protowire.ConsumeString(b)
			switch num {
			case eventState:
				ev.State = s
			case eventService:
				ev.Service = s
			case eventHost:
				ev.Host = s
			case eventDescription:
				ev.Description = s
			case eventTags:
				ev.Tags = append(ev.Tags, s)
			}
			return n, nil
		case eventTTL, eventMetricF:
			if typ != protowire.Fixed32Type {
				return 0, fmt.Errorf("%w for field %d: %d", errWireType, num, typ)
			}
			v, n := protowire.ConsumeFixed32(b)
			if num == eventTTL {
				ev.TTL = math.Float32frombits(v)
			} else {
				ev.Metric = math.Float32frombits(v)
			}
			return n, nil
		case eventAttributes:
			if typ != protowire.BytesType {
				return 0, fmt.Errorf("%w for attribute: %d", errWireType, typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var key, value string
			err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if typ == protowire.BytesType && (num == attributeKey || num == attributeValue) {
					s, n := protowire.ConsumeString(b)
					if num == attributeKey {
						key = s
					} else {
						value = s
					}
					return n, nil
				}
				return protowire.ConsumeFieldValue(num, typ, b), nil
			})
			if err != nil {
				return 0, err
			}
			if ev.Attributes == nil {
				ev.Attributes = make(map[string]string)
			}
			ev.Attributes[key] = value
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// walk calls field for every field of a message. field returns how many
// bytes of the value it consumed, negative on a protowire parse error.
func walk(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
