package mixture

import "errors"

var (
	// ErrInvalidCovarianceType is returned when an unknown covariance family is specified.
	ErrInvalidCovarianceType = errors.New("invalid covariance type")

	// ErrWeightsShape is returned when a weights array has the wrong shape.
	ErrWeightsShape = errors.New("invalid weights shape")

	// ErrWeightsRange is returned when a weight falls outside [0, 1].
	ErrWeightsRange = errors.New("weights out of range [0, 1]")

	// ErrWeightsNotNormalized is returned when weights do not sum to one
	// along the component axis.
	ErrWeightsNotNormalized = errors.New("weights not normalized")

	// ErrMeansShape is returned when a means matrix has the wrong shape.
	ErrMeansShape = errors.New("invalid means shape")

	// ErrPrecisionsShape is returned when a precisions container does not
	// match the declared covariance family.
	ErrPrecisionsShape = errors.New("invalid precisions shape")

	// ErrNotPositiveDefinite is returned when a covariance or precision
	// matrix cannot be Cholesky-factorized even after regularization.
	ErrNotPositiveDefinite = errors.New("matrix not positive definite")

	// ErrVolumesShape is returned when the volume weights do not match the
	// sample count or contain negative entries.
	ErrVolumesShape = errors.New("invalid volume weights")

	// ErrComponentMismatch is returned when two mixtures with different
	// component counts are combined.
	ErrComponentMismatch = errors.New("component count mismatch")

	// ErrDimensionMismatch is returned when feature dimensions disagree.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")

	// ErrTooFewSamples is returned when there are fewer samples than components.
	ErrTooFewSamples = errors.New("fewer samples than mixture components")

	// ErrInvalidInit is returned for an unimplemented initialization method.
	ErrInvalidInit = errors.New("unimplemented initialization method")

	// ErrNotFitted is returned when an operation requires fitted parameters.
	ErrNotFitted = errors.New("mixture is not fitted")

	// ErrNoInverse is returned when sampling requires the inverse of a
	// cluster mapping that does not provide one.
	ErrNoInverse = errors.New("cluster mapping has no inverse")

	// ErrColumnMismatch is returned when two sample matrices have a
	// different number of columns.
	ErrColumnMismatch = errors.New("matrices must have the same number of columns")
)
