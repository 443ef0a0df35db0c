package compression

import "sort"

// ID identifies a compression kind.
type ID int

// Compression ids. Audio ids are below videoBase.
const (
	None ID = 0

	ALAW ID = iota
	ULAW
	MP2
	MP3
	AC3
	AAC
	Vorbis
)

const videoBase ID = 0x10000

// Video compression ids.
const (
	JPEG ID = videoBase + iota
	PNG
	TIFF
	TGA
	MPEG4ASP
	H264
	Dirac
	D10
)

var names = map[ID]string{
	None:     "none",
	ALAW:     "alaw",
	ULAW:     "ulaw",
	MP2:      "mp2",
	MP3:      "mp3",
	AC3:      "ac3",
	AAC:      "aac",
	Vorbis:   "vorbis",
	JPEG:     "jpeg",
	PNG:      "png",
	TIFF:     "tiff",
	TGA:      "tga",
	MPEG4ASP: "mpeg4",
	H264:     "h264",
	Dirac:    "dirac",
	D10:      "d10",
}

var reverseNames = func() map[string]ID {
	m := make(map[string]ID, len(names))
	for id, name := range names {
		m[name] = id
	}
	return m
}()

// String returns the short name, "unknown" for ids outside the table.
func (id ID) String() string {
	if name, exist := names[id]; exist {
		return name
	}
	return "unknown"
}

// IsAudio reports if id is an audio compression.
func (id ID) IsAudio() bool {
	return id > None && id < videoBase
}

// IsVideo reports if id is a video compression.
func (id ID) IsVideo() bool {
	return id >= videoBase
}

// FromString returns the id for a short name.
func FromString(name string) (ID, bool) {
	id, exist := reverseNames[name]
	return id, exist
}

// IDs returns every known id except None in ascending order.
func IDs() []ID {
	ids := make([]ID, 0, len(names)-1)
	for id := range names {
		if id != None {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
