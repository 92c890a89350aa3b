package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/supercollider/internal/handler"
)

// effectEnvelope tags a msgpack payload with its variant.
type effectEnvelope struct {
	Kind string             `msgpack:"k"`
	Data msgpack.RawMessage `msgpack:"d"`
}

// marshalEffect encodes an effect for the effect BLOB column. A nil effect
// is stored as NULL.
func marshalEffect(eff handler.Effect) ([]byte, error) {
	if eff == nil {
		return nil, nil
	}
	data, err := msgpack.Marshal(eff)
	if err != nil {
		return nil, fmt.Errorf("marshal effect %s: %w", eff.EffectType(), err)
	}
	out, err := msgpack.Marshal(effectEnvelope{Kind: eff.EffectType(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal effect envelope: %w", err)
	}
	return out, nil
}

// unmarshalEffect decodes an effect BLOB. NULL and empty blobs decode to nil.
func unmarshalEffect(blob []byte) (handler.Effect, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var env effectEnvelope
	if err := msgpack.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("unmarshal effect envelope: %w", err)
	}

	switch env.Kind {
	case handler.HitEffect{}.EffectType():
		var e handler.HitEffect
		if err := decodeEffect(env, &e); err != nil {
			return nil, err
		}
		return e, nil
	case handler.WeaponWeaponEffect{}.EffectType():
		var e handler.WeaponWeaponEffect
		if err := decodeEffect(env, &e); err != nil {
			return nil, err
		}
		return e, nil
	case handler.ContactEffect{}.EffectType():
		var e handler.ContactEffect
		if err := decodeEffect(env, &e); err != nil {
			return nil, err
		}
		return e, nil
	case handler.BeamEffect{}.EffectType():
		var e handler.BeamEffect
		if err := decodeEffect(env, &e); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fmt.Errorf("unmarshal effect: unknown kind %q", env.Kind)
}

func decodeEffect(env effectEnvelope, v any) error {
	if err := msgpack.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal effect %s: %w", env.Kind, err)
	}
	return nil
}
