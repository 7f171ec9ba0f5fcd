// Package mixture implements the volume-weighted Gaussian mixture engine
// used by petrophysically guided inversion. Every sufficient statistic is
// weighted by per-sample physical volume rather than by sample count, and
// the EM fit can blend the estimated parameters with a reference mixture
// supplied as a geological prior.
//
// A single Mixture type covers all variants: the covariance family
// (full, tied, diag, spherical), an optional per-cluster invertible feature
// mapping, and an optional prior are selected through FitConfig rather than
// through a type hierarchy.
package mixture
