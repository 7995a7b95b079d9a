package signaling

import (
	"github.com/pion/webrtc/v4"
)

// IceCandidate is the flattened candidate description the device expects.
// Optional attributes are sent as null when the candidate has none.
type IceCandidate struct {
	Component      uint16  `json:"component"`
	Foundation     string  `json:"foundation"`
	Address        string  `json:"address"`
	Port           uint16  `json:"port"`
	Priority       uint32  `json:"priority"`
	Protocol       string  `json:"protocol"`
	Type           string  `json:"type"`
	RelatedAddress *string `json:"relatedAddress"`
	RelatedPort    *uint16 `json:"relatedPort"`
	SDPMid         *string `json:"sdpMid"`
	SDPMLineIndex  *uint16 `json:"sdpMLineIndex"`
	TCPType        *string `json:"tcpType"`
}

// FromPion flattens a locally gathered pion candidate.
func FromPion(c *webrtc.ICECandidate) IceCandidate {
	component := uint16(2)
	if c.Component == 1 {
		component = 1
	}
	out := IceCandidate{
		Component:  component,
		Foundation: c.Foundation,
		Address:    c.Address,
		Port:       c.Port,
		Priority:   c.Priority,
		Protocol:   c.Protocol.String(),
		Type:       c.Typ.String(),
	}
	if c.RelatedAddress != "" {
		addr, port := c.RelatedAddress, c.RelatedPort
		out.RelatedAddress = &addr
		out.RelatedPort = &port
	}
	if c.TCPType != "" {
		tcpType := c.TCPType
		out.TCPType = &tcpType
	}

	init := c.ToJSON()
	out.SDPMid = init.SDPMid
	out.SDPMLineIndex = init.SDPMLineIndex
	return out
}
