package control

// FrameKind tells text control frames from binary chunk frames.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

func (k FrameKind) String() string {
	if k == FrameBinary {
		return "binary"
	}
	return "text"
}

// Frame is one data channel message, typed where it enters the process.
type Frame struct {
	Kind FrameKind
	Data []byte
}

func TextFrame(data []byte) Frame   { return Frame{Kind: FrameText, Data: data} }
func BinaryFrame(data []byte) Frame { return Frame{Kind: FrameBinary, Data: data} }
