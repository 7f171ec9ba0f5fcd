package model

import (
	"errors"
	"math"
)

// ErrMapShape is returned when map input and output lengths disagree.
var ErrMapShape = errors.New("map input length mismatch")

// Map transforms an inversion parameter vector into a physical property
// vector. Deriv returns the diagonal of the map's Jacobian at m.
type Map interface {
	Apply(dst, m []float64) error
	Deriv(dst, m []float64) error
}

// IdentityMap passes parameters through unchanged.
type IdentityMap struct{}

func (IdentityMap) Apply(dst, m []float64) error {
	if len(dst) != len(m) {
		return ErrMapShape
	}
	copy(dst, m)
	return nil
}

func (IdentityMap) Deriv(dst, m []float64) error {
	if len(dst) != len(m) {
		return ErrMapShape
	}
	for i := range dst {
		dst[i] = 1
	}
	return nil
}

// ExpMap maps log-parameters to strictly positive physical values,
// the usual parameterization for conductivity-like properties.
type ExpMap struct{}

func (ExpMap) Apply(dst, m []float64) error {
	if len(dst) != len(m) {
		return ErrMapShape
	}
	for i, v := range m {
		dst[i] = math.Exp(v)
	}
	return nil
}

func (ExpMap) Deriv(dst, m []float64) error {
	if len(dst) != len(m) {
		return ErrMapShape
	}
	for i, v := range m {
		dst[i] = math.Exp(v)
	}
	return nil
}
