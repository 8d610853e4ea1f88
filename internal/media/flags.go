package media

import "strconv"

// Flags describes per-object media attributes as named booleans. The
// compact bitmask form exists only at the persistence boundary, through
// Encode and DecodeFlags.
type Flags struct {
	Premium  bool
	Animated bool
	Official bool
	Hidden   bool
}

const (
	flagPremium uint8 = 1 << iota
	flagAnimated
	flagOfficial
	flagHidden
)

// metadataFlagsKey is the object-metadata field carrying encoded flags.
const metadataFlagsKey = "mediastash-flags"

// Encode packs the flags into their stored bitmask form.
func (f Flags) Encode() uint8 {
	var bits uint8
	if f.Premium {
		bits |= flagPremium
	}
	if f.Animated {
		bits |= flagAnimated
	}
	if f.Official {
		bits |= flagOfficial
	}
	if f.Hidden {
		bits |= flagHidden
	}
	return bits
}

// DecodeFlags unpacks a stored bitmask into named flags.
func DecodeFlags(bits uint8) Flags {
	return Flags{
		Premium:  bits&flagPremium != 0,
		Animated: bits&flagAnimated != 0,
		Official: bits&flagOfficial != 0,
		Hidden:   bits&flagHidden != 0,
	}
}

// ApplyTo writes the encoded flags into object metadata, returning the
// map so callers can chain on a nil map.
func (f Flags) ApplyTo(metadata map[string]string) map[string]string {
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata[metadataFlagsKey] = strconv.FormatUint(uint64(f.Encode()), 10)
	return metadata
}

// FlagsFromMetadata reads flags back from object metadata. Missing or
// malformed values decode as the zero flag set.
func FlagsFromMetadata(metadata map[string]string) Flags {
	raw, ok := metadata[metadataFlagsKey]
	if !ok {
		return Flags{}
	}
	bits, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return Flags{}
	}
	return DecodeFlags(uint8(bits))
}
