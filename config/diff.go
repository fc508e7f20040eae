package config

import (
	"encoding/json"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"go.viam.com/safewander/resource"
)

// A Diff is the difference between two configs, left and right
// where left is usually old and right is new. So the diff is the
// changes from left to right.
type Diff struct {
	Left, Right    *Config
	Added          *Config
	Modified       *Config
	Removed        *Config
	ResourcesEqual bool
	PrettyDiff     string
}

// DiffConfigs returns the difference between the two given configs
// from left to right.
func DiffConfigs(left, right Config) (*Diff, error) {
	pretty, err := prettyDiff(left, right)
	if err != nil {
		return nil, err
	}

	diff := Diff{
		Left:       &left,
		Right:      &right,
		Added:      &Config{},
		Modified:   &Config{},
		Removed:    &Config{},
		PrettyDiff: pretty,
	}

	// If left contains something right does not => removed
	// If right contains something left does not => added
	// If both contain it and they are not equal => modified
	different := diffResources(left.Components, right.Components,
		&diff.Added.Components, &diff.Modified.Components, &diff.Removed.Components)
	different = diffResources(left.Services, right.Services,
		&diff.Added.Services, &diff.Modified.Services, &diff.Removed.Services) || different
	diff.ResourcesEqual = !different

	return &diff, nil
}

func prettyDiff(left, right Config) (string, error) {
	leftMd, err := json.MarshalIndent(left, "", " ")
	if err != nil {
		return "", err
	}
	rightMd, err := json.MarshalIndent(right, "", " ")
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(leftMd), string(rightMd), true)
	filteredDiffs := make([]diffmatchpatch.Diff, 0, len(diffs))
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		filteredDiffs = append(filteredDiffs, d)
	}
	return dmp.DiffPrettyText(filteredDiffs), nil
}

// String returns a pretty version of the diff.
func (diff *Diff) String() string {
	return diff.PrettyDiff
}

func diffResources(left, right []resource.Config, added, modified, removed *[]resource.Config) bool {
	leftIndex := make(map[resource.Name]int)
	leftM := make(map[resource.Name]resource.Config)
	for idx, l := range left {
		leftM[l.ResourceName()] = l
		leftIndex[l.ResourceName()] = idx
	}

	var different bool
	for _, r := range right {
		l, ok := leftM[r.ResourceName()]
		delete(leftM, r.ResourceName())
		if ok {
			if !l.Equals(r) {
				*modified = append(*modified, r)
				different = true
			}
			continue
		}
		*added = append(*added, r)
		different = true
	}

	removedIdx := make([]int, 0, len(leftM))
	for k := range leftM {
		removedIdx = append(removedIdx, leftIndex[k])
		different = true
	}
	sort.Ints(removedIdx)
	for _, idx := range removedIdx {
		*removed = append(*removed, left[idx])
	}
	return different
}
