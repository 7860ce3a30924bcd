package runtime

import (
	"slices"

	"github.com/aretw0/railyard/pkg/domain"
)

// A path addresses a step in nested step lists: [i] is steps[i], and
// [i, arm, j] is steps[i].Then[j] (arm 0) or steps[i].Else[j] (arm 1).

const (
	armThen = 0
	armElse = 1
)

func branch(s domain.Step, arm int) []domain.Step {
	if arm == armElse {
		return s.Else
	}
	return s.Then
}

// stepAt returns the step addressed by path.
func stepAt(steps []domain.Step, path []int) (domain.Step, bool) {
	if len(path) == 0 || len(path)%2 == 0 {
		return domain.Step{}, false
	}
	list := steps
	for i := 0; ; i += 2 {
		idx := path[i]
		if idx < 0 || idx >= len(list) {
			return domain.Step{}, false
		}
		if i == len(path)-1 {
			return list[idx], true
		}
		if list[idx].Kind != domain.StepBranch {
			return domain.Step{}, false
		}
		list = branch(list[idx], path[i+1])
	}
}

// settle moves a path that points past the end of a nested list to the step
// following its enclosing branch. It returns nil when the flow is exhausted.
func settle(steps []domain.Step, path []int) []int {
	for len(path) > 0 {
		if _, ok := stepAt(steps, path); ok {
			return path
		}
		if len(path) == 1 {
			return nil
		}
		path = path[:len(path)-2]
		path[len(path)-1]++
	}
	return nil
}

// advance returns the path of the step after path.
func advance(steps []domain.Step, path []int) []int {
	next := slices.Clone(path)
	next[len(next)-1]++
	return settle(steps, next)
}

// enterArm returns the path of the first step of a branch arm.
func enterArm(steps []domain.Step, path []int, arm int) []int {
	next := append(slices.Clone(path), arm, 0)
	return settle(steps, next)
}
