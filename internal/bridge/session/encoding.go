package session

import (
	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

// SSRCAny is the encoding selector meaning "the single encoding, when there
// is exactly one".
const SSRCAny int64 = 0

// EncodingSetActive flips an encoding on or off.
func (c *Controller) EncodingSetActive(ownerTag string, ssrc int64, active bool) error {
	return c.mutateEncoding(ownerTag, ssrc, func(encoding *rtc.Encoding) {
		encoding.Active = active
	})
}

// EncodingSetMaxBitrate caps an encoding's bitrate in bps.
func (c *Controller) EncodingSetMaxBitrate(ownerTag string, ssrc int64, bitrate int) error {
	return c.mutateEncoding(ownerTag, ssrc, func(encoding *rtc.Encoding) {
		encoding.MaxBitrate = &bitrate
	})
}

// EncodingSetMinBitrate floors an encoding's bitrate in bps.
func (c *Controller) EncodingSetMinBitrate(ownerTag string, ssrc int64, bitrate int) error {
	return c.mutateEncoding(ownerTag, ssrc, func(encoding *rtc.Encoding) {
		encoding.MinBitrate = &bitrate
	})
}

// mutateEncoding fetches a fresh parameter snapshot from the owning sender,
// applies the mutation to the selected encoding and writes the snapshot back.
// The engine applies parameters only through an explicit write, so mutating
// the snapshot alone would be lost.
func (c *Controller) mutateEncoding(ownerTag string, ssrc int64, mutate func(*rtc.Encoding)) error {
	sender, ok := c.reg.Senders.ByTag(ownerTag)
	if !ok {
		if _, isReceiver := c.reg.Receivers.ByTag(ownerTag); isReceiver {
			return errs.New(errs.InvalidState, "receiver encoding parameters are read-only")
		}
		return errs.New(errs.NotFound, "sender is not found")
	}

	params := sender.Parameters()
	encoding := selectEncoding(&params, ssrc)
	if encoding == nil {
		return errs.New(errs.NotFound, "no encoding matches ssrc %d", ssrc)
	}
	mutate(encoding)
	return sender.SetParameters(params)
}

func selectEncoding(params *rtc.RTPParameters, ssrc int64) *rtc.Encoding {
	if ssrc == SSRCAny {
		if len(params.Encodings) == 1 {
			return &params.Encodings[0]
		}
		return nil
	}
	for i := range params.Encodings {
		if s := params.Encodings[i].SSRC; s != nil && *s == ssrc {
			return &params.Encodings[i]
		}
	}
	return nil
}
