package stivale2

import "unsafe"

// TagID identifies the kind of a tag. The values are defined by the stivale2
// protocol.
type TagID uint64

// The list of struct tags defined by the stivale2 protocol.
const (
	TagCommandLine       TagID = 0xe5e76a1b4597a781
	TagMemoryMap         TagID = 0x2187f79e8612de07
	TagFramebuffer       TagID = 0x506461d2950408fa
	TagEDIDInfo          TagID = 0x968609d7af96b845
	TagTerminal          TagID = 0xc2b3f4c3233b0974
	TagModules           TagID = 0x4b6fe466aade04ce
	TagRSDP              TagID = 0x9e1786930a375e78
	TagSMBIOS            TagID = 0x274bd246c62bf7d1
	TagEpoch             TagID = 0x566a7bed888e1407
	TagFirmware          TagID = 0x359d837855e3858c
	TagEFISystemTable    TagID = 0x4bc5ec15845b558e
	TagKernelFile        TagID = 0xe599d90c2975584a
	TagKernelFileV2      TagID = 0x37c13018a02c6ea2
	TagKernelSlide       TagID = 0xee80847d01506c57
	TagSMP               TagID = 0x34d1d96339647025
	TagPXEInfo           TagID = 0x29d1e96239247032
	TagUART              TagID = 0xb813f9b8dbc78797
	TagDeviceTree        TagID = 0xabb29bd49a2833fa
	TagVMap              TagID = 0xb0ed257db18cb58f
	TagPMRs              TagID = 0x5df266a64047b6bd
	TagKernelBaseAddress TagID = 0x060d78874a2a8af0

	// TagMTRR is deprecated by the protocol and only kept so that older
	// bootloaders can still be decoded.
	TagMTRR TagID = 0x6bc1a78ebe871172
)

// String returns the catalog name for the tag id.
func (id TagID) String() string {
	if shape, ok := ShapeOf(id); ok {
		return shape.Name
	}

	return "unknown"
}

// TagHeader is the common prefix of every tag in the chain.
type TagHeader struct {
	// The tag kind.
	Identifier TagID

	// Address of the next tag header or 0 if this is the last tag.
	Next uint64
}

var sizeofTagHeader = uint64(unsafe.Sizeof(TagHeader{}))
