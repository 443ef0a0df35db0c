package compression

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// Errors.
var (
	ErrAACConfigSampleRateInvalid  = errors.New("invalid sample rate index")
	ErrAACConfigChannelUnsupported = errors.New("channel configuration 0 not supported")
	ErrAACConfigChannelInvalid     = errors.New("invalid channel configuration")
	ErrAACConfigTypeUnsupported    = errors.New("unsupported object type")
)

// MPEG-4 audio object types.
const (
	AACObjectTypeMain = 1
	AACObjectTypeLC   = 2
	AACObjectTypeSSR  = 3
	AACObjectTypeLTP  = 4
	AACObjectTypeSBR  = 5
	AACObjectTypePS   = 29
)

const aacSyncExtensionType = 0x2b7

var aacSampleRates = []int{
	96000,
	88200,
	64000,
	48000,
	44100,
	32000,
	24000,
	22050,
	16000,
	12000,
	11025,
	8000,
	7350,
}

// AACConfig is the part of a MPEG-4 AudioSpecificConfig
// needed to derive the track timing.
type AACConfig struct {
	ObjectType int
	SampleRate int
	Channels   int

	// Spectral band replication. SampleRate is the core rate,
	// ExtensionSampleRate the output rate.
	SBR                 bool
	PS                  bool
	ExtensionSampleRate int
}

// bit reader that keeps track of the number of consumed bits.
type aacReader struct {
	r    *bitio.Reader
	size int
	pos  int
}

func (r *aacReader) readBits(n uint8) (uint64, error) {
	v, err := r.r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	r.pos += int(n)
	return v, nil
}

func (r *aacReader) readFlag() (bool, error) {
	v, err := r.readBits(1)
	return v == 1, err
}

func (r *aacReader) left() int {
	return r.size - r.pos
}

func (r *aacReader) objectType() (int, error) {
	typ, err := r.readBits(5)
	if err != nil {
		return 0, err
	}
	if typ == 31 {
		ext, err := r.readBits(6)
		if err != nil {
			return 0, err
		}
		return 32 + int(ext), nil
	}
	return int(typ), nil
}

func (r *aacReader) sampleRate() (int, error) {
	index, err := r.readBits(4)
	if err != nil {
		return 0, err
	}
	switch {
	case index < uint64(len(aacSampleRates)):
		return aacSampleRates[index], nil
	case index == 0x0F:
		rate, err := r.readBits(24)
		if err != nil {
			return 0, err
		}
		return int(rate), nil
	default:
		return 0, fmt.Errorf("%w (%d)", ErrAACConfigSampleRateInvalid, index)
	}
}

// ParseAACConfig decodes an AudioSpecificConfig.
// Both explicit and backward compatible SBR signaling are detected.
func ParseAACConfig(buf []byte) (*AACConfig, error) {
	// ref: ISO 14496-3 1.6.2.1
	r := &aacReader{
		r:    bitio.NewReader(bytes.NewReader(buf)),
		size: len(buf) * 8,
	}

	var c AACConfig
	var err error

	c.ObjectType, err = r.objectType()
	if err != nil {
		return nil, fmt.Errorf("object type: %w", err)
	}

	c.SampleRate, err = r.sampleRate()
	if err != nil {
		return nil, fmt.Errorf("sample rate: %w", err)
	}

	channelConfig, err := r.readBits(4)
	if err != nil {
		return nil, fmt.Errorf("channel config: %w", err)
	}
	switch {
	case channelConfig == 0:
		return nil, ErrAACConfigChannelUnsupported
	case channelConfig <= 6:
		c.Channels = int(channelConfig)
	case channelConfig == 7:
		c.Channels = 8
	default:
		return nil, fmt.Errorf("%w (%d)", ErrAACConfigChannelInvalid, channelConfig)
	}

	if c.ObjectType == AACObjectTypeSBR || c.ObjectType == AACObjectTypePS {
		c.SBR = true
		c.PS = c.ObjectType == AACObjectTypePS
		c.ExtensionSampleRate, err = r.sampleRate()
		if err != nil {
			return nil, fmt.Errorf("extension sample rate: %w", err)
		}
		c.ObjectType, err = r.objectType()
		if err != nil {
			return nil, fmt.Errorf("core object type: %w", err)
		}
	}

	switch c.ObjectType {
	case AACObjectTypeMain, AACObjectTypeLC, AACObjectTypeSSR, AACObjectTypeLTP:
	default:
		return nil, fmt.Errorf("%w: %d", ErrAACConfigTypeUnsupported, c.ObjectType)
	}

	if err := parseGASpecificConfig(r); err != nil {
		return nil, fmt.Errorf("ga specific config: %w", err)
	}

	if !c.SBR && r.left() >= 16 {
		if err := parseSyncExtension(r, &c); err != nil {
			return nil, fmt.Errorf("sync extension: %w", err)
		}
	}

	return &c, nil
}

func parseGASpecificConfig(r *aacReader) error {
	// Frame length flag.
	if _, err := r.readFlag(); err != nil {
		return err
	}

	dependsOnCoreCoder, err := r.readFlag()
	if err != nil {
		return err
	}
	if dependsOnCoreCoder {
		// Core coder delay.
		if _, err := r.readBits(14); err != nil {
			return err
		}
	}

	// Extension flag, always zero for the supported object types.
	_, err = r.readFlag()
	return err
}

func parseSyncExtension(r *aacReader, c *AACConfig) error {
	syncType, err := r.readBits(11)
	if err != nil {
		return err
	}
	if syncType != aacSyncExtensionType {
		return nil
	}

	extType, err := r.objectType()
	if err != nil {
		return err
	}
	if extType != AACObjectTypeSBR {
		return nil
	}

	c.SBR, err = r.readFlag()
	if err != nil {
		return err
	}
	if !c.SBR {
		return nil
	}

	c.ExtensionSampleRate, err = r.sampleRate()
	if err != nil {
		return err
	}

	if r.left() >= 12 {
		syncType, err := r.readBits(11)
		if err != nil {
			return err
		}
		if syncType == 0x548 {
			c.PS, err = r.readFlag()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// ProbeSBR sets FlagSBR when the descriptor is AAC and
// its global header signals spectral band replication.
func (d *Descriptor) ProbeSBR() error {
	if d.ID != AAC || len(d.GlobalHeader) == 0 {
		return nil
	}
	config, err := ParseAACConfig(d.GlobalHeader)
	if err != nil {
		return err
	}
	if config.SBR {
		d.Flags |= FlagSBR
	}
	return nil
}
