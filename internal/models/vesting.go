/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

type ScheduleKind uint8

const (
	ScheduleInstant ScheduleKind = iota
	ScheduleLinear
	ScheduleExternal
)

func (k ScheduleKind) String() string {
	switch k {
	case ScheduleInstant:
		return "instant"
	case ScheduleLinear:
		return "linear"
	case ScheduleExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Window is a [Start, End] pair of millisecond timestamps
type Window struct {
	Start uint64 `msgpack:"start" json:"start_time"`
	End   uint64 `msgpack:"end" json:"end_time"`
}

func (w Window) Valid() bool {
	return w.Start <= w.End
}

// VestingSchedule is a closed union over the three release rules.
// Window holds the Linear bounds, or the fallback pair for External.
// Oracle is only meaningful for External.
type VestingSchedule struct {
	Kind   ScheduleKind `msgpack:"kind"`
	Window Window       `msgpack:"window"`
	Oracle Account      `msgpack:"oracle"`
}

func InstantSchedule() VestingSchedule {
	return VestingSchedule{Kind: ScheduleInstant}
}

func LinearSchedule(start, end uint64) VestingSchedule {
	return VestingSchedule{Kind: ScheduleLinear, Window: Window{Start: start, End: end}}
}

func ExternalSchedule(oracle Account, fallback Window) VestingSchedule {
	return VestingSchedule{Kind: ScheduleExternal, Window: fallback, Oracle: oracle}
}

// Validate rejects unknown kinds and inverted windows
func (s VestingSchedule) Validate() error {
	switch s.Kind {
	case ScheduleInstant:
		return nil
	case ScheduleLinear, ScheduleExternal:
		if !s.Window.Valid() {
			return fmt.Errorf("%s schedule window start %d is after end %d", s.Kind, s.Window.Start, s.Window.End)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind %d", uint8(s.Kind))
	}
}

// ParseSchedule reads "instant", "linear:START:END" or "external:ORACLE:START:END".
// Times are milliseconds; for external the pair is the fallback window.
func ParseSchedule(s string) (VestingSchedule, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch strings.ToLower(parts[0]) {
	case "instant":
		if len(parts) != 1 {
			return VestingSchedule{}, fmt.Errorf("instant schedule takes no arguments: %q", s)
		}
		return InstantSchedule(), nil
	case "linear":
		if len(parts) != 3 {
			return VestingSchedule{}, fmt.Errorf("expected linear:START:END, got %q", s)
		}
		w, err := parseWindow(parts[1], parts[2])
		if err != nil {
			return VestingSchedule{}, err
		}
		return LinearSchedule(w.Start, w.End), nil
	case "external":
		if len(parts) != 4 {
			return VestingSchedule{}, fmt.Errorf("expected external:ORACLE:START:END, got %q", s)
		}
		oracle, err := ParseAccount(parts[1])
		if err != nil {
			return VestingSchedule{}, fmt.Errorf("external schedule oracle: %w", err)
		}
		w, err := parseWindow(parts[2], parts[3])
		if err != nil {
			return VestingSchedule{}, err
		}
		return ExternalSchedule(oracle, w), nil
	}
	return VestingSchedule{}, fmt.Errorf("unknown schedule %q", s)
}

func parseWindow(start, end string) (Window, error) {
	s, err := strconv.ParseUint(start, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start time %q: %w", start, err)
	}
	e, err := strconv.ParseUint(end, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end time %q: %w", end, err)
	}
	return Window{Start: s, End: e}, nil
}

// String renders the form accepted by ParseSchedule
func (s VestingSchedule) String() string {
	switch s.Kind {
	case ScheduleLinear:
		return fmt.Sprintf("linear:%d:%d", s.Window.Start, s.Window.End)
	case ScheduleExternal:
		return fmt.Sprintf("external:%s:%d:%d", s.Oracle, s.Window.Start, s.Window.End)
	default:
		return s.Kind.String()
	}
}

// VestEntry is one deposit locked for a receiver. Entries are never deleted.
type VestEntry struct {
	Id        int64
	Creator   Account
	Receiver  Account
	Asset     AssetRef
	Total     *uint256.Int
	Released  *uint256.Int
	Schedule  VestingSchedule
	CreatedAt uint64
}

// Remaining is Total - Released
func (e *VestEntry) Remaining() *uint256.Int {
	return new(uint256.Int).Sub(e.Total, e.Released)
}

func (e *VestEntry) FullyReleased() bool {
	return e.Released.Cmp(e.Total) >= 0
}

// VestingSummary aggregates the entries of one (receiver, asset) pair
type VestingSummary struct {
	Receiver   Account
	Asset      AssetRef
	Entries    int
	Total      *uint256.Int
	Released   *uint256.Int
	Releasable *uint256.Int
	AsOf       uint64
}
