// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"sort"
	"time"
)

// CostModel estimates how long a read transaction takes. The defaults were
// fitted to a 4800 baud bus and should be re-measured on other hardware.
type CostModel struct {
	PerByte        time.Duration
	PerTransaction time.Duration
	BusReset       time.Duration
	// ReadAllMargin is how much cheaper a plan must be than reading the
	// whole DCB for the plan to be used.
	ReadAllMargin time.Duration
}

// DefaultCostModel returns the fitted defaults.
func DefaultCostModel() CostModel {
	return CostModel{
		PerByte:        2075 * time.Microsecond,
		PerTransaction: 70727 * time.Microsecond,
		BusReset:       100 * time.Millisecond,
		ReadAllMargin:  20 * time.Millisecond,
	}
}

// Read is the cost of reading n bytes in one transaction.
func (c CostModel) Read(n int) time.Duration {
	return time.Duration(n)*c.PerByte + c.PerTransaction
}

// ReadBlock is one planned read transaction covering First..Last.
type ReadBlock struct {
	First  FieldID
	Last   FieldID
	Start  int // DCB address
	Length int // bytes
}

// Plan is the outcome of planning a read.
type Plan struct {
	Blocks  []ReadBlock
	ReadAll bool // read the whole DCB instead of Blocks
	Cost    time.Duration
}

// Planner batches field reads into transactions.
type Planner struct {
	Cost CostModel
}

// NewPlanner returns a planner using cost.
func NewPlanner(cost CostModel) *Planner {
	return &Planner{Cost: cost}
}

type located struct {
	id    FieldID
	start int
	end   int // exclusive
}

// Plan covers fields with the cheapest set of read blocks. Blocks never
// cross an address gap. Within each gap-free span it either reads the whole
// span at once or reads each run of adjacent requested fields on its own,
// whichever costs less. If the result is not cheaper than a full DCB read
// by ReadAllMargin, the plan reads everything. Absent fields are skipped.
func (p *Planner) Plan(m AddressMap, fields []FieldID) Plan {
	locs := locate(m, fields)
	if len(locs) == 0 {
		return Plan{}
	}

	var blocks []ReadBlock
	spanStart := 0
	for i := 1; i <= len(locs); i++ {
		if i < len(locs) && m.contiguous(Fields[locs[i-1].id].Address, Fields[locs[i].id].Address) {
			continue
		}
		blocks = append(blocks, p.planSpan(locs[spanStart:i])...)
		spanStart = i
	}

	plan := Plan{Blocks: blocks, Cost: p.total(blocks)}
	full := p.Cost.Read(m.Length())
	if plan.Cost+p.Cost.ReadAllMargin >= full {
		plan.ReadAll = true
		plan.Cost = full
	}
	return plan
}

// planSpan picks between one merged read and one read per run of adjacent
// fields for a gap-free span.
func (p *Planner) planSpan(span []located) []ReadBlock {
	merged := []ReadBlock{block(span[0], span[len(span)-1])}

	var separate []ReadBlock
	runStart := 0
	for i := 1; i <= len(span); i++ {
		if i < len(span) && span[i].start == span[i-1].end {
			continue
		}
		separate = append(separate, block(span[runStart], span[i-1]))
		runStart = i
	}

	if p.total(separate) < p.total(merged) {
		return separate
	}
	return merged
}

func (p *Planner) total(blocks []ReadBlock) time.Duration {
	if len(blocks) == 0 {
		return 0
	}
	var sum time.Duration
	for _, b := range blocks {
		sum += p.Cost.Read(b.Length)
	}
	return sum + time.Duration(len(blocks)-1)*p.Cost.BusReset
}

func block(first, last located) ReadBlock {
	return ReadBlock{First: first.id, Last: last.id, Start: first.start, Length: last.end - first.start}
}

// locate resolves fields to DCB positions, dropping absent and duplicate
// fields, in address order.
func locate(m AddressMap, fields []FieldID) []located {
	seen := make(map[FieldID]bool, len(fields))
	var out []located
	for _, id := range fields {
		if !id.Valid() || seen[id] {
			continue
		}
		seen[id] = true
		addr, ok := m.Locate(id)
		if !ok {
			continue
		}
		out = append(out, located{id: id, start: addr, end: addr + Fields[id].Width})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// WriteBlock is one planned write transaction.
type WriteBlock struct {
	Fields []FieldID
	Start  int
	Data   []byte
}

// PendingWrite is an encoded field value waiting to be written.
type PendingWrite struct {
	Field FieldID
	Start int
	Data  []byte
}

// PlanWrites merges writes to adjacent DCB bytes into shared transactions
// of at most maxPayload bytes.
func PlanWrites(writes []PendingWrite, maxPayload int) []WriteBlock {
	sorted := append([]PendingWrite(nil), writes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []WriteBlock
	for _, w := range sorted {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Start+len(last.Data) == w.Start && len(last.Data)+len(w.Data) <= maxPayload {
				last.Fields = append(last.Fields, w.Field)
				last.Data = append(last.Data, w.Data...)
				continue
			}
		}
		out = append(out, WriteBlock{
			Fields: []FieldID{w.Field},
			Start:  w.Start,
			Data:   append([]byte(nil), w.Data...),
		})
	}
	return out
}
