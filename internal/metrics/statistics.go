// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// Failure reasons, used as metric tags and labels
const (
	ReasonOK         = "ok"
	ReasonNoResponse = "no_response"
	ReasonNoCRC      = "no_crc"
	ReasonCRC        = "crc"
	ReasonLength     = "length"
	ReasonAddress    = "address"
	ReasonFunction   = "function"
	ReasonTransport  = "transport"
	ReasonExhausted  = "exhausted"
	ReasonOther      = "other"
)

// Reason classifies a transaction error.
func Reason(err error) string {
	var exhausted *heatmiser.RetriesExhaustedError
	switch {
	case err == nil:
		return ReasonOK
	case errors.As(err, &exhausted):
		return ReasonExhausted
	case errors.Is(err, heatmiser.ErrNoResponse):
		return ReasonNoResponse
	case errors.Is(err, heatmiser.ErrNoCRC):
		return ReasonNoCRC
	case errors.Is(err, heatmiser.ErrBadCRC):
		return ReasonCRC
	case errors.Is(err, heatmiser.ErrLengthMismatch):
		return ReasonLength
	case errors.Is(err, heatmiser.ErrAddressMismatch):
		return ReasonAddress
	case errors.Is(err, heatmiser.ErrFunctionMismatch):
		return ReasonFunction
	}
	var transport *heatmiser.TransportError
	if errors.As(err, &transport) {
		return ReasonTransport
	}
	return ReasonOther
}

// Statistics tracks bus transaction outcomes and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Transactions uint64
	Succeeded    uint64
	Failed       uint64
	Retries      uint64
	Broadcasts   uint64

	// Per-attempt failures, including those that were retried
	NoResponse      uint64
	CRCErrors       uint64
	LengthErrors    uint64
	AddressErrors   uint64
	FunctionErrors  uint64
	TransportErrors uint64

	// Busy is the total time spent in transactions
	Busy time.Duration

	// Rates (calculated)
	TransactionRate float64 // transactions/sec
	ErrorRate       float64 // failed transactions/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Transaction records one finished transaction.
func (s *Statistics) Transaction(op string, elapsed time.Duration, err error, now time.Time) {
	s.Transactions++
	s.Busy += elapsed
	s.LastUpdateTime = now
	if op == "broadcast" {
		s.Broadcasts++
	}

	if err == nil {
		s.Succeeded++
		return
	}
	s.Failed++

	// Exhausted retries were already counted attempt by attempt, except the
	// last attempt which is counted here.
	var exhausted *heatmiser.RetriesExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Last
	}
	s.attempt(err)
}

// Retry records one failed attempt that will be retried.
func (s *Statistics) Retry(err error, now time.Time) {
	s.Retries++
	s.LastUpdateTime = now
	s.attempt(err)
}

func (s *Statistics) attempt(err error) {
	switch Reason(err) {
	case ReasonNoResponse:
		s.NoResponse++
	case ReasonCRC, ReasonNoCRC:
		s.CRCErrors++
	case ReasonLength:
		s.LengthErrors++
	case ReasonAddress:
		s.AddressErrors++
	case ReasonFunction:
		s.FunctionErrors++
	case ReasonTransport:
		s.TransportErrors++
	}
}

// CalculateRates calculates transaction and error rates
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TransactionRate = float64(s.Transactions) / elapsed
		s.ErrorRate = float64(s.Failed) / elapsed
	}
}

// Summary returns a formatted statistics summary
func (s *Statistics) Summary(now time.Time) string {
	s.CalculateRates(now)

	var okPercent, failPercent float64
	if s.Transactions > 0 {
		okPercent = float64(s.Succeeded) * 100.0 / float64(s.Transactions)
		failPercent = float64(s.Failed) * 100.0 / float64(s.Transactions)
	}

	result := fmt.Sprintf("=== Bus Statistics (%.0f seconds) ===\n", now.Sub(s.StartTime).Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", s.Transactions)
	result += fmt.Sprintf("Succeeded:       %8d (%.1f%%)\n", s.Succeeded, okPercent)
	if s.Failed > 0 {
		result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", s.Failed, failPercent)
	}
	if s.Retries > 0 {
		result += fmt.Sprintf("Retries:         %8d\n", s.Retries)
	}
	if s.Broadcasts > 0 {
		result += fmt.Sprintf("Broadcasts:      %8d\n", s.Broadcasts)
	}
	if n := s.NoResponse + s.CRCErrors + s.LengthErrors + s.AddressErrors + s.FunctionErrors + s.TransportErrors; n > 0 {
		result += fmt.Sprintf("Failed Attempts: %8d\n", n)
		if s.NoResponse > 0 {
			result += fmt.Sprintf("  No Response:      %5d\n", s.NoResponse)
		}
		if s.CRCErrors > 0 {
			result += fmt.Sprintf("  CRC Errors:       %5d\n", s.CRCErrors)
		}
		if s.LengthErrors > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthErrors)
		}
		if s.AddressErrors > 0 {
			result += fmt.Sprintf("  Address Mismatch: %5d\n", s.AddressErrors)
		}
		if s.FunctionErrors > 0 {
			result += fmt.Sprintf("  Bad Function:     %5d\n", s.FunctionErrors)
		}
		if s.TransportErrors > 0 {
			result += fmt.Sprintf("  Serial Faults:    %5d\n", s.TransportErrors)
		}
	}

	result += fmt.Sprintf("Transaction Rate:%8.2f /sec\n", s.TransactionRate)
	result += fmt.Sprintf("Error Rate:      %8.2f /sec\n", s.ErrorRate)
	result += "====================================\n"
	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
