// Package qr validates decoded QR text into a destination posture for the
// autonomous cycle.
//
// Two encodings are accepted. A JSON object:
//
//	{"id":"Fragil","angles":[90,80,70,60,50,40,20]}
//
// and a flat key/value form:
//
//	ID=Fragil;A=90,80,70,60,50,40,20
//
// Text starting with "{" is only ever read as JSON.
package qr

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gwillem/sppark/pkg/robot"
)

// UnspecifiedID names a payload whose text carried no identifier.
const UnspecifiedID = "unspecified"

// Payload is a validated destination posture.
type Payload struct {
	ID      string        `json:"id" yaml:"id"`
	Posture robot.Posture `json:"angles" yaml:"angles"`
}

var (
	flatID     = regexp.MustCompile(`(?i)ID\s*=\s*([^;]+)`)
	flatAngles = regexp.MustCompile(`(?i)A\s*=\s*([0-9,\s]+)`)
)

// Parse validates text. It reports false when text matches neither
// encoding or carries the wrong number of angles; callers ignore such
// frames.
func Parse(text string) (Payload, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Payload{}, false
	}
	if strings.HasPrefix(raw, "{") {
		return parseJSON(raw)
	}
	return parseFlat(raw)
}

func parseJSON(raw string) (Payload, bool) {
	var obj struct {
		ID     json.RawMessage `json:"id"`
		Angles json.RawMessage `json:"angles"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return Payload{}, false
	}
	p, ok := robot.PostureFromJSON(obj.Angles)
	if !ok {
		return Payload{}, false
	}
	return Payload{ID: jsonID(obj.ID), Posture: p}, true
}

// jsonID accepts a string or a number as the identifier.
func jsonID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return idOrDefault(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return idOrDefault(n.String())
	}
	return UnspecifiedID
}

func parseFlat(raw string) (Payload, bool) {
	m := flatAngles.FindStringSubmatch(raw)
	if m == nil {
		return Payload{}, false
	}
	fields := strings.Split(m[1], ",")
	if len(fields) != robot.ChannelCount {
		return Payload{}, false
	}
	var p robot.Posture
	for i, f := range fields {
		p[i] = robot.ClampString(f, robot.MinAngle, robot.MaxAngle)
	}

	id := UnspecifiedID
	if m := flatID.FindStringSubmatch(raw); m != nil {
		id = idOrDefault(m[1])
	}
	return Payload{ID: id, Posture: p}, true
}

func idOrDefault(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return UnspecifiedID
}
