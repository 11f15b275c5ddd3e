// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clone

import (
	"fmt"
	"strings"

	"github.com/localclone/localclone/exclusion"
	"github.com/localclone/localclone/scene"
)

// VertexExclusionMask holds one exclusion bit mask per vertex of a mesh.
// Bit g is set when the vertex has a bone influence above the weight
// threshold on a bone in exclusion group g.
type VertexExclusionMask []uint32

// BuildVertexMask computes the vertex exclusion mask of a skinned
// renderer. The bits of every qualifying influence are combined.
func BuildVertexMask(r *scene.SkinnedMeshRenderer, m *exclusion.Map, threshold float32) VertexExclusionMask {
	boneBits := make([]uint32, len(r.Bones))
	for j, b := range r.Bones {
		if g, ok := m.Lookup(b); ok {
			boneBits[j] = g.Bit()
		}
	}
	mask := make(VertexExclusionMask, r.Mesh.NumVertex())
	for i := range mask {
		if i >= len(r.Mesh.Weights) {
			break
		}
		bw := r.Mesh.Weights[i]
		for k := range scene.MaxInfluences {
			j := bw.Index[k]
			if bw.Weight[k] > threshold && j >= 0 && j < len(boneBits) {
				mask[i] |= boneBits[j]
			}
		}
	}
	return mask
}

// Count returns the number of vertices with any of the given bits set.
func (vm VertexExclusionMask) Count(bits uint32) int {
	n := 0
	for _, v := range vm {
		if v&bits != 0 {
			n++
		}
	}
	return n
}

// MaskGroupNames returns the names of the bits of a hidden vertex mask,
// indexed by bit, from the groups of the exclusion map. Bits without
// a group are named "Additional <bit>".
func MaskGroupNames(m *exclusion.Map) []string {
	names := make([]string, exclusion.MaxGroups)
	for i := range names {
		names[i] = fmt.Sprintf("Additional %d", i)
	}
	for _, g := range m.Groups() {
		names[g.ID] = g.Name
	}
	return names
}

// DescribeMask returns the names of the bits set in a hidden vertex mask.
func DescribeMask(mask uint32, names []string) string {
	var set []string
	for i, nm := range names {
		if mask&(1<<uint(i)) != 0 {
			set = append(set, nm)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ", ")
}
