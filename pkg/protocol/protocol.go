// Package protocol implements the text wire format shared by the TCP and
// UDP transports.
//
// Every frame is one UTF-8 line of the form
//
//	KIND:SENDER:CONTENT
//
// with exactly two structural colons. CONTENT is the remainder of the line
// verbatim and may itself contain colons; SENDER may not, which is an
// accepted protocol limitation (usernames are validated to exclude ':').
// An AUTH frame requesting account creation carries a trailing
// ":registration=true" after the content. Encode and Decode both handle
// the suffix so the Registration flag round-trips like any other field.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
)

// MaxFrameSize is the largest frame accepted from either transport.
const MaxFrameSize = 1024

// registrationSuffix marks an AUTH frame as a registration request.
const registrationSuffix = ":registration=true"

// ErrMalformedFrame is returned when a frame has fewer than two
// colon-separated fields. Callers must treat it as "drop this frame",
// never as fatal.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Encode serializes a message to its wire form.
func Encode(m model.Message) string {
	s := string(m.Kind) + ":" + m.Sender + ":" + m.Content
	if m.Kind == model.KindAuth && m.Registration {
		s += registrationSuffix
	}
	return s
}

// EncodeBytes serializes a message to the byte slice written to a socket.
func EncodeBytes(m model.Message) []byte {
	return []byte(Encode(m))
}

// Decode parses a wire frame into a message. The split is on the first two
// colons only, so embedded colons in the content survive.
func Decode(frame string) (model.Message, error) {
	frame = strings.TrimRight(frame, "\r\n")

	var registration bool
	if rest, ok := strings.CutSuffix(frame, registrationSuffix); ok {
		registration = true
		frame = rest
	}

	parts := strings.SplitN(frame, ":", 3)
	if len(parts) < 3 {
		return model.Message{}, fmt.Errorf("%w: %q", ErrMalformedFrame, frame)
	}

	m := model.Message{
		Kind:    model.Kind(parts[0]),
		Sender:  parts[1],
		Content: parts[2],
	}
	if m.Kind == model.KindAuth {
		m.Registration = registration
	} else if registration {
		// Suffix on a non-AUTH frame is just content.
		m.Content += registrationSuffix
	}
	return m, nil
}

// DecodeBytes parses a raw frame as read from a socket.
func DecodeBytes(frame []byte) (model.Message, error) {
	return Decode(string(frame))
}
