package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Step is the discriminator of a signaling envelope.
type Step string

const (
	StepConnect      Step = "1_connect"
	StepSendOffer    Step = "2_send_offer"
	StepSendOfferICE Step = "3_send_offer_ice"
	StepSendAnswer   Step = "4_send_answer"
	StepDisconnect   Step = "5_disconnect"
)

// Identities accepted by the intermediary.
const (
	ViewerID = "web_interface"
	DeviceID = "smart_vss"
)

// Envelope is one JSON message exchanged with the signaling intermediary.
// Offer and ICECandidate carry JSON documents encoded as strings; Answer is
// kept raw because devices send it either as an object or as a string.
type Envelope struct {
	Step         Step            `json:"step"`
	ID           string          `json:"id,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	Offer        string          `json:"offer,omitempty"`
	ICECandidate string          `json:"ice_candidate,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Error        string          `json:"error,omitempty"`
}

var ErrMissingPayload = errors.New("envelope has no payload for its step")

// NewConnect builds the registration envelope for the given identity.
func NewConnect(id string) Envelope {
	return Envelope{Step: StepConnect, ID: id}
}

// NewOffer builds a 2_send_offer envelope carrying the offer as a JSON string.
func NewOffer(offer webrtc.SessionDescription) (Envelope, error) {
	raw, err := json.Marshal(offer)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode offer: %w", err)
	}
	return Envelope{Step: StepSendOffer, Offer: string(raw)}, nil
}

// NewCandidate builds a 3_send_offer_ice envelope carrying the candidate as a JSON string.
func NewCandidate(c IceCandidate) (Envelope, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode ice candidate: %w", err)
	}
	return Envelope{Step: StepSendOfferICE, ICECandidate: string(raw)}, nil
}

// NewAnswer builds a 4_send_answer envelope with the answer as an object.
func NewAnswer(answer webrtc.SessionDescription) (Envelope, error) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode answer: %w", err)
	}
	return Envelope{Step: StepSendAnswer, Answer: raw}, nil
}

// DecodeOffer parses the string-encoded offer.
func (e Envelope) DecodeOffer() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if e.Offer == "" {
		return desc, ErrMissingPayload
	}
	if err := json.Unmarshal([]byte(e.Offer), &desc); err != nil {
		return desc, fmt.Errorf("failed to decode offer: %w", err)
	}
	return desc, nil
}

// DecodeAnswer parses the answer, accepting both object and string encodings.
func (e Envelope) DecodeAnswer() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	raw := bytes.TrimSpace(e.Answer)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return desc, ErrMissingPayload
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return desc, fmt.Errorf("failed to decode answer string: %w", err)
		}
		raw = []byte(inner)
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("failed to decode answer: %w", err)
	}
	if desc.SDP == "" {
		return desc, fmt.Errorf("failed to decode answer: %w", ErrMissingPayload)
	}
	return desc, nil
}

// DecodeCandidate parses the string-encoded candidate.
func (e Envelope) DecodeCandidate() (IceCandidate, error) {
	var c IceCandidate
	if e.ICECandidate == "" {
		return c, ErrMissingPayload
	}
	if err := json.Unmarshal([]byte(e.ICECandidate), &c); err != nil {
		return c, fmt.Errorf("failed to decode ice candidate: %w", err)
	}
	return c, nil
}

// Decode parses a raw inbound frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.Step == "" {
		return e, errors.New("failed to decode envelope: missing step")
	}
	return e, nil
}
