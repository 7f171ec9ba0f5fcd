package mixture

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// estimateGaussianParameters computes the volume-weighted sufficient
// statistics of the mixture: per-component weighted counts
// nk = sum(volume*responsibility) floored by weightFloor, weighted means,
// and family-shaped covariances with regCovar added to every diagonal.
func estimateGaussianParameters(X *mat.Dense, volumes []float64, resp *mat.Dense, regCovar float64, covType CovarianceType) ([]float64, *mat.Dense, *Covariances, error) {
	n, k := resp.Dims()
	respW := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		v := volumes[i]
		for j := 0; j < k; j++ {
			respW.Set(i, j, v*resp.At(i, j))
		}
	}
	return estimateWeightedParameters(X, respW, regCovar, covType)
}

// estimateWeightedParameters is the family dispatch shared by the volume
// weighted path and the per-cluster mapping path (which weights by plain
// responsibilities).
func estimateWeightedParameters(X *mat.Dense, respW *mat.Dense, regCovar float64, covType CovarianceType) ([]float64, *mat.Dense, *Covariances, error) {
	n, k := respW.Dims()
	_, d := X.Dims()

	nk := make([]float64, k)
	for j := 0; j < k; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += respW.At(i, j)
		}
		nk[j] = s + weightFloor
	}

	means := mat.NewDense(k, d, nil)
	means.Mul(respW.T(), X)
	for j := 0; j < k; j++ {
		row := means.RawRowView(j)
		floats.Scale(1/nk[j], row)
	}

	covs, err := estimateCovariances(respW, X, nk, means, regCovar, covType)
	if err != nil {
		return nil, nil, nil, err
	}
	return nk, means, covs, nil
}

func estimateCovariances(respW, X *mat.Dense, nk []float64, means *mat.Dense, regCovar float64, covType CovarianceType) (*Covariances, error) {
	switch covType {
	case CovFull:
		return covariancesFull(respW, X, nk, means, regCovar), nil
	case CovTied:
		return covariancesTied(respW, X, nk, means, regCovar), nil
	case CovDiag:
		return covariancesDiag(respW, X, nk, means, regCovar), nil
	case CovSpherical:
		diag := covariancesDiag(respW, X, nk, means, regCovar)
		k, d := diag.Diag.Dims()
		sph := make([]float64, k)
		for j := 0; j < k; j++ {
			sph[j] = floats.Sum(diag.Diag.RawRowView(j)) / float64(d)
		}
		return &Covariances{Type: CovSpherical, Spherical: sph}, nil
	default:
		return nil, ErrInvalidCovarianceType
	}
}

func covariancesFull(respW, X *mat.Dense, nk []float64, means *mat.Dense, regCovar float64) *Covariances {
	n, k := respW.Dims()
	_, d := X.Dims()
	covs := NewFullCovariances(k, d)
	diff := make([]float64, d)
	for j := 0; j < k; j++ {
		cov := covs.Full[j]
		mu := means.RawRowView(j)
		for i := 0; i < n; i++ {
			w := respW.At(i, j)
			if w == 0 {
				continue
			}
			for q := 0; q < d; q++ {
				diff[q] = X.At(i, q) - mu[q]
			}
			for p := 0; p < d; p++ {
				for q := p; q < d; q++ {
					cov.SetSym(p, q, cov.At(p, q)+w*diff[p]*diff[q])
				}
			}
		}
		for p := 0; p < d; p++ {
			for q := p; q < d; q++ {
				cov.SetSym(p, q, cov.At(p, q)/nk[j])
			}
			cov.SetSym(p, p, cov.At(p, p)+regCovar)
		}
	}
	return covs
}

// covariancesTied pools one shared scatter matrix. Each sample enters with
// its total weight (the row sum of respW), keeping the estimator consistent
// with the volume weighting of nk and the means.
func covariancesTied(respW, X *mat.Dense, nk []float64, means *mat.Dense, regCovar float64) *Covariances {
	n, k := respW.Dims()
	_, d := X.Dims()
	tied := mat.NewSymDense(d, nil)
	for i := 0; i < n; i++ {
		var w float64
		for j := 0; j < k; j++ {
			w += respW.At(i, j)
		}
		if w == 0 {
			continue
		}
		for p := 0; p < d; p++ {
			xp := X.At(i, p)
			for q := p; q < d; q++ {
				tied.SetSym(p, q, tied.At(p, q)+w*xp*X.At(i, q))
			}
		}
	}
	for j := 0; j < k; j++ {
		mu := means.RawRowView(j)
		for p := 0; p < d; p++ {
			for q := p; q < d; q++ {
				tied.SetSym(p, q, tied.At(p, q)-nk[j]*mu[p]*mu[q])
			}
		}
	}
	total := floats.Sum(nk)
	for p := 0; p < d; p++ {
		for q := p; q < d; q++ {
			tied.SetSym(p, q, tied.At(p, q)/total)
		}
		tied.SetSym(p, p, tied.At(p, p)+regCovar)
	}
	return &Covariances{Type: CovTied, Tied: tied}
}

func covariancesDiag(respW, X *mat.Dense, nk []float64, means *mat.Dense, regCovar float64) *Covariances {
	n, k := respW.Dims()
	_, d := X.Dims()
	diag := mat.NewDense(k, d, nil)
	for j := 0; j < k; j++ {
		mu := means.RawRowView(j)
		row := diag.RawRowView(j)
		for i := 0; i < n; i++ {
			w := respW.At(i, j)
			if w == 0 {
				continue
			}
			for q := 0; q < d; q++ {
				dev := X.At(i, q) - mu[q]
				row[q] += w * dev * dev
			}
		}
		for q := 0; q < d; q++ {
			row[q] = row[q]/nk[j] + regCovar
		}
	}
	return &Covariances{Type: CovDiag, Diag: diag}
}

// estimateMappedParameters reproduces the per-cluster mapping estimator:
// a full batch of means and covariances is computed against each cluster's
// transformed view of the samples, and only the k-th row or block is kept
// per cluster. Quadratic in the component count; kept as specified.
// Responsibilities enter unweighted here, matching the variant's contract.
func estimateMappedParameters(X *mat.Dense, resp *mat.Dense, mappings []Mapping, regCovar float64, covType CovarianceType) ([]float64, *mat.Dense, *Covariances, error) {
	n, k := resp.Dims()
	_, d := X.Dims()

	nk := make([]float64, k)
	for j := 0; j < k; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += resp.At(i, j)
		}
		nk[j] = s + weightFloor
	}

	// Batch means on the raw samples give the container shape; each row is
	// then replaced with the mean of that cluster's transformed view.
	means := mat.NewDense(k, d, nil)
	means.Mul(resp.T(), X)
	for j := 0; j < k; j++ {
		floats.Scale(1/nk[j], means.RawRowView(j))
	}
	for j := 0; j < k; j++ {
		mappedX := applyMapping(mappings[j], X)
		batch := mat.NewDense(k, d, nil)
		batch.Mul(resp.T(), mappedX)
		row := batch.RawRowView(j)
		floats.Scale(1/nk[j], row)
		means.SetRow(j, row)
	}

	covs, err := estimateCovariances(resp, X, nk, means, regCovar, covType)
	if err != nil {
		return nil, nil, nil, err
	}
	for j := 0; j < k; j++ {
		mappedX := applyMapping(mappings[j], X)
		batch, err := estimateCovariances(resp, mappedX, nk, means, regCovar, covType)
		if err != nil {
			return nil, nil, nil, err
		}
		switch covType {
		case CovFull:
			covs.Full[j] = batch.Full[j]
		case CovTied:
			covs.Tied = batch.Tied
		case CovDiag:
			covs.Diag.SetRow(j, batch.Diag.RawRowView(j))
		case CovSpherical:
			covs.Spherical[j] = batch.Spherical[j]
		}
	}
	return nk, means, covs, nil
}
