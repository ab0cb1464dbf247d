package ensemble

import (
	"math/rand/v2"
)

// regularization holds the L1/L2 penalties applied to leaf values and split
// gains.
type regularization struct {
	lambdaL1 float64
	lambdaL2 float64
}

const hessEpsilon = 1e-10

// leafValue returns the Newton step -G/(H+lambda), soft-thresholded by the L1
// penalty.
func (r regularization) leafValue(sumGrad, sumHess float64) float64 {
	denominator := sumHess + r.lambdaL2 + hessEpsilon
	return -r.threshold(sumGrad) / denominator
}

// splitGain is the loss reduction of splitting a parent into left and right.
func (r regularization) splitGain(leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return r.score(leftGrad, leftHess) + r.score(rightGrad, rightHess) - r.score(parentGrad, parentHess)
}

// score = 0.5 * G^2 / (H + lambda)
func (r regularization) score(sumGrad, sumHess float64) float64 {
	g := r.threshold(sumGrad)
	return 0.5 * g * g / (sumHess + r.lambdaL2 + hessEpsilon)
}

func (r regularization) threshold(sumGrad float64) float64 {
	if r.lambdaL1 <= 0 {
		return sumGrad
	}
	switch {
	case sumGrad > r.lambdaL1:
		return sumGrad - r.lambdaL1
	case sumGrad < -r.lambdaL1:
		return sumGrad + r.lambdaL1
	default:
		return 0
	}
}

// rowSampler draws the training rows of each boosting round.
type rowSampler struct {
	fraction float64
	seed     uint64
}

// sample returns the sorted rows used in the given round. A fraction of 1
// (or more) uses every row. Each round draws from its own PCG stream so the
// sample does not depend on how many rounds ran before.
func (s rowSampler) sample(nRows, round int) []int {
	if s.fraction >= 1 {
		rows := make([]int, nRows)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}

	n := int(float64(nRows) * s.fraction)
	if n < 1 {
		n = 1
	}
	rng := rand.New(rand.NewPCG(s.seed, uint64(round)))
	perm := rng.Perm(nRows)[:n]

	// Sorted so split search sees rows in a stable order.
	mark := make([]bool, nRows)
	for _, i := range perm {
		mark[i] = true
	}
	rows := perm[:0]
	for i, ok := range mark {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}
