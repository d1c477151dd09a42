// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     lesson
// Description: Session ordering of catalog utterances
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package lesson

import (
	"sort"
	"strconv"

	"github.com/msto63/hatsuon/internal/practice/catalog"
)

// Order returns the utterances in session order: numeric ids ascending,
// followed by non-numeric ids in catalog order. Gaps are allowed; the next
// lesson is always the next entry of this order.
func Order(list []catalog.Utterance) []catalog.Utterance {
	out := append([]catalog.Utterance(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		ni, iok := numericID(out[i].ID)
		nj, jok := numericID(out[j].ID)
		switch {
		case iok && jok:
			return ni < nj
		case iok:
			return true
		default:
			return false
		}
	})
	return out
}

func numericID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

// Mean returns the arithmetic mean of scores, or 0 for none
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
