// Package linkinfo defines the payload returned by
// IoCtrl(LinkStateGetInfo) (spec.md §4.H/§6): richer PHY diagnostics than
// the plain up/down LinkStateGet, for drivers that can report them.
// PHYInfo is wire-compatible with github.com/golang/protobuf's
// reflection-based proto.Marshal/Unmarshal, wrapped here as Marshal and
// Unmarshal. Nothing else in this module, cmd/netcored included,
// serializes PHYInfo.
package linkinfo

import (
	proto "github.com/golang/protobuf/proto"
)

// PHYInfo is the IoCtrl(LinkStateGetInfo) out-parameter.
type PHYInfo struct {
	SpeedMbps    uint32 `protobuf:"varint,1,opt,name=speed_mbps" json:"speed_mbps,omitempty"`
	FullDuplex   bool   `protobuf:"varint,2,opt,name=full_duplex" json:"full_duplex,omitempty"`
	AutoNegotiated bool `protobuf:"varint,3,opt,name=auto_negotiated" json:"auto_negotiated,omitempty"`
	LinkPartner  string `protobuf:"bytes,4,opt,name=link_partner" json:"link_partner,omitempty"`

	XXX_unrecognized []byte `json:"-"`
}

func (m *PHYInfo) Reset()         { *m = PHYInfo{} }
func (m *PHYInfo) String() string { return proto.CompactTextString(m) }
func (*PHYInfo) ProtoMessage()    {}

// Marshal serializes info to the protobuf wire format.
func Marshal(info *PHYInfo) ([]byte, error) {
	return proto.Marshal(info)
}

// Unmarshal parses the protobuf wire format into info.
func Unmarshal(data []byte, info *PHYInfo) error {
	return proto.Unmarshal(data, info)
}
