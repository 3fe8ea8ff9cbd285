package olm

import (
	"roomkeys/internal/domain/types"
	"roomkeys/internal/protocol/megolm"
)

// sessionConfig maps a room encryption algorithm to its Megolm variant.
func sessionConfig(alg types.EventEncryptionAlgorithm) (megolm.SessionConfig, error) {
	switch {
	case alg == types.MegolmV1AesSha2:
		return megolm.ConfigV1(), nil
	case alg == types.MegolmV2AesSha2 && types.ExperimentalAlgorithms:
		return megolm.ConfigV2(), nil
	default:
		return megolm.SessionConfig{}, &SessionCreationError{Algorithm: alg}
	}
}
