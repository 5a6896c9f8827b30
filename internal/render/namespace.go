// Package render turns a delivery's JSON payload into a flat variable
// namespace and substitutes those variables into commands, scripts and
// secrets.
//
// Payload values are addressed by dotted and indexed paths rooted at "event":
//
//	{"repository":{"name":"grhooks"},"commits":[{"id":"a1"}]}
//
// yields event.repository.name = "grhooks" and event.commits[0].id = "a1".
// The delivery's event type is bound as event.type.
//
// References use the ${{ path }} delimiters so shell syntax such as $VAR,
// ${VAR} or Go-template {{ }} blocks in scripts is never interpreted.
// A reference may pipe its value through sprig functions:
//
//	git checkout ${{ event.ref | trimPrefix "refs/heads/" }}
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// RootPrefix is the variable prefix under which the payload is bound.
	RootPrefix = "event"

	// EventTypeVar holds the delivery's event type.
	EventTypeVar = RootPrefix + ".type"
)

// Namespace maps flattened variable paths to their string values.
// It owns its keys; nothing refers back into the decoded payload.
type Namespace map[string]string

// Build flattens payload under RootPrefix and binds eventType as event.type.
// The event type is bound last so the authenticated header value wins over a
// payload field that happens to be called "type".
func Build(eventType string, payload []byte) (Namespace, error) {
	ns := Namespace{}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := ns.Flatten(RootPrefix, payload); err != nil {
			return nil, err
		}
	}
	ns[EventTypeVar] = eventType
	return ns, nil
}

// Flatten walks the JSON document depth-first in source order and binds
// every scalar under its computed path. Duplicate paths are last-write-wins.
func (ns Namespace) Flatten(prefix string, payload []byte) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	if err := ns.walk(dec, prefix); err != nil {
		return fmt.Errorf("flatten payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("flatten payload: unexpected data after top-level value")
	}
	return nil
}

func (ns Namespace) walk(dec *json.Decoder, prefix string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("object key at %q is not a string", prefix)
				}
				if err := ns.walk(dec, joinKey(prefix, key)); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := ns.walk(dec, prefix+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected delimiter %q at %q", v, prefix)
		}
		// closing '}' or ']'
		_, err := dec.Token()
		return err
	case nil:
		ns[prefix] = "null"
	case bool:
		ns[prefix] = strconv.FormatBool(v)
	case json.Number:
		ns[prefix] = v.String()
	case string:
		ns[prefix] = v
	default:
		return fmt.Errorf("unsupported token %T at %q", tok, prefix)
	}
	return nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
