// Package anomaly scores how unusual a feature vector is relative to
// historical traffic, using an isolation-forest ensemble.
package anomaly

import (
	"math"
	"math/rand"
)

// eulerMascheroni is used in the expected-path-length approximation.
const eulerMascheroni = 0.5772156649

// treeNode is one node of a randomized partitioning tree. Leaves carry the
// number of training points that reached them.
type treeNode struct {
	splitDim int
	splitVal float64
	left     *treeNode
	right    *treeNode
	size     int
}

// forest is an immutable trained ensemble. It is built off to the side and
// published atomically, so scoring never observes a partially built state.
type forest struct {
	trees      []*treeNode
	sampleSize int
}

// buildForest trains nTrees isolation trees, each on a random subsample of
// at most subsample points.
func buildForest(points [][]float64, nTrees, subsample int, rng *rand.Rand) *forest {
	if subsample > len(points) {
		subsample = len(points)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(subsample))))

	trees := make([]*treeNode, nTrees)
	for i := range trees {
		sample := make([][]float64, subsample)
		for j := range sample {
			sample[j] = points[rng.Intn(len(points))]
		}
		trees[i] = buildTree(sample, 0, maxDepth, rng)
	}

	return &forest{trees: trees, sampleSize: subsample}
}

// buildTree recursively partitions points by random splits until isolation
// or the depth limit.
func buildTree(points [][]float64, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if len(points) <= 1 || depth >= maxDepth {
		return &treeNode{size: len(points)}
	}

	dim := len(points[0])

	// Choose randomly among dimensions that actually have spread; if the
	// remaining points are identical the node becomes a leaf.
	var candidates []int
	bounds := make([][2]float64, dim)
	for d := 0; d < dim; d++ {
		lo, hi := points[0][d], points[0][d]
		for _, p := range points[1:] {
			if p[d] < lo {
				lo = p[d]
			}
			if p[d] > hi {
				hi = p[d]
			}
		}
		bounds[d] = [2]float64{lo, hi}
		if hi > lo {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return &treeNode{size: len(points)}
	}

	splitDim := candidates[rng.Intn(len(candidates))]
	lo, hi := bounds[splitDim][0], bounds[splitDim][1]

	splitVal := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, p := range points {
		if p[splitDim] < splitVal {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{size: len(points)}
	}

	return &treeNode{
		splitDim: splitDim,
		splitVal: splitVal,
		left:     buildTree(left, depth+1, maxDepth, rng),
		right:    buildTree(right, depth+1, maxDepth, rng),
		size:     len(points),
	}
}

// pathLength walks a point down a tree; external nodes contribute the
// expected remaining depth for the points pooled there.
func pathLength(p []float64, node *treeNode, depth float64) float64 {
	if node.left == nil || node.right == nil {
		return depth + avgPathFactor(node.size)
	}
	if p[node.splitDim] < node.splitVal {
		return pathLength(p, node.left, depth+1)
	}
	return pathLength(p, node.right, depth+1)
}

// avgPathFactor is c(n): the expected path length of an unsuccessful BST
// search over n points under random partitioning.
func avgPathFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// score normalizes the averaged path length across the ensemble into [0,1]
// via score = 2^(-avgPath / c(sampleSize)). Shorter paths isolate faster,
// so they score closer to 1.
func (f *forest) score(p []float64) float64 {
	sum := 0.0
	for _, tree := range f.trees {
		sum += pathLength(p, tree, 0)
	}
	avg := sum / float64(len(f.trees))

	c := avgPathFactor(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}
