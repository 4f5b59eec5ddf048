package lightning

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ShortChannelId identifies a channel by its funding output: block height, transaction index and output index
type ShortChannelId uint64

var ErrInvalidShortChannelId = errors.New("invalid short channel id")

// ParseShortChannelId accepts both the numeric and the "BLOCKxTXxOUT" notation
func ParseShortChannelId(scid string) (ShortChannelId, error) {
	if numeric, err := strconv.ParseUint(scid, 10, 64); err == nil {
		return ShortChannelId(numeric), nil
	}
	if len(strings.Split(scid, "x")) == 3 {
		var blockHeight, txIndex, txPosition uint64
		if _, err := fmt.Sscanf(scid, "%dx%dx%d", &blockHeight, &txIndex, &txPosition); err == nil {
			return ShortChannelId((blockHeight << 40) | (txIndex << 16) | txPosition), nil
		}
	}
	return 0, ErrInvalidShortChannelId
}

func (scid ShortChannelId) BlockHeight() uint32 {
	return uint32(scid >> 40)
}

func (scid ShortChannelId) String() string {
	txIndex := uint32(scid>>16) & 0xFFFFFF
	txPosition := uint16(scid)
	return fmt.Sprintf("%dx%dx%d", scid.BlockHeight(), txIndex, txPosition)
}
