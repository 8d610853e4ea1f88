package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagsEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flags Flags
		bits  uint8
	}{
		{"none", Flags{}, 0},
		{"premium", Flags{Premium: true}, 1},
		{"animated", Flags{Animated: true}, 2},
		{"official", Flags{Official: true}, 4},
		{"hidden", Flags{Hidden: true}, 8},
		{"premium animated", Flags{Premium: true, Animated: true}, 3},
		{"all", Flags{Premium: true, Animated: true, Official: true, Hidden: true}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bits, tt.flags.Encode())
			assert.Equal(t, tt.flags, DecodeFlags(tt.bits))
		})
	}
}

func TestFlagsMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	flags := Flags{Premium: true, Hidden: true}
	metadata := flags.ApplyTo(nil)

	assert.Equal(t, "9", metadata[metadataFlagsKey])
	assert.Equal(t, flags, FlagsFromMetadata(metadata))
}

func TestFlagsFromMetadataMissingOrMalformed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Flags{}, FlagsFromMetadata(nil))
	assert.Equal(t, Flags{}, FlagsFromMetadata(map[string]string{}))
	assert.Equal(t, Flags{}, FlagsFromMetadata(map[string]string{metadataFlagsKey: "not-a-number"}))
}
