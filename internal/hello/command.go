// Package hello is the demo workload: it greets whoever a queue message names
// and optionally records the greeting.
package hello

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingName is returned by Decode when the command has no name.
var ErrMissingName = errors.New("name is required")

// Command is the message body, e.g. {"id": "42", "name": "World"}.
// ID is optional; the queue message ID stands in when it is empty.
type Command struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Decode parses a message body into a Command. Unknown fields and trailing
// data are rejected.
func Decode(body []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var cmd Command
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("invalid hello command: %w", err)
	}
	if dec.More() {
		return Command{}, errors.New("invalid hello command: trailing data after object")
	}

	cmd.ID = strings.TrimSpace(cmd.ID)
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.Name == "" {
		return Command{}, ErrMissingName
	}
	return cmd, nil
}
