//go:build experimental_algorithms

package types

// ExperimentalAlgorithms gates m.megolm.v2.aes-sha2 support.
const ExperimentalAlgorithms = true
