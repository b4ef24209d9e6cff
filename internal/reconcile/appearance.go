package reconcile

import "github.com/shalloville/shalloville/pkg/protocol"

const DEFAULT_VARIANT = "0"

// Appearance holds the selected variant of every body part. The upper
// garment is drawn on four anchors and the lower garment on three, but only
// the canonical choice travels over the wire.
type Appearance struct {
	Head string
	Hair string
	Eyes string

	UpperDress string
	LeftHand   string
	RightHand  string
	Body       string

	Hip string

	Legs     string
	LeftLeg  string
	RightLeg string
}

func DefaultAppearance() Appearance {
	return Appearance{
		Head:       DEFAULT_VARIANT,
		Hair:       DEFAULT_VARIANT,
		Eyes:       DEFAULT_VARIANT,
		UpperDress: DEFAULT_VARIANT,
		LeftHand:   DEFAULT_VARIANT,
		RightHand:  DEFAULT_VARIANT,
		Body:       DEFAULT_VARIANT,
		Hip:        DEFAULT_VARIANT,
		Legs:       DEFAULT_VARIANT,
		LeftLeg:    DEFAULT_VARIANT,
		RightLeg:   DEFAULT_VARIANT,
	}
}

// Set applies one wire attribute and reports whether it was recognised.
func (a *Appearance) Set(key, value string) bool {
	switch key {
	case protocol.ATTR_HAIR:
		a.Hair = value
	case protocol.ATTR_EYES:
		a.Eyes = value
	case protocol.ATTR_HEAD:
		a.Head = value
	case protocol.ATTR_HIP:
		a.Hip = value
	case protocol.ATTR_UPPER:
		a.UpperDress = value
		a.LeftHand = value
		a.RightHand = value
		a.Body = value
	case protocol.ATTR_LEGS:
		a.Legs = value
		a.LeftLeg = value
		a.RightLeg = value
	default:
		return false
	}
	return true
}

// Attributes is the wire form published for the local participant.
func (a Appearance) Attributes(name string) map[string]string {
	return map[string]string{
		protocol.ATTR_NAME:  name,
		protocol.ATTR_HAIR:  a.Hair,
		protocol.ATTR_EYES:  a.Eyes,
		protocol.ATTR_HEAD:  a.Head,
		protocol.ATTR_UPPER: a.UpperDress,
		protocol.ATTR_HIP:   a.Hip,
		protocol.ATTR_LEGS:  a.Legs,
	}
}
