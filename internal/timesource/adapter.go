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

package timesource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-vesting-go/internal/models"

	"go.uber.org/zap"
)

const DefaultOracleTimeout = 2 * time.Second

// Oracle answers the current (start, end) window configured at an account
type Oracle interface {
	TimeWindow(ctx context.Context, account models.Account) (start, end uint64, err error)
}

// ErrMalformedWindow is returned by oracles whose reply cannot be read as a window
var ErrMalformedWindow = errors.New("malformed oracle window")

// Adapter resolves "now" and the effective window of a schedule
type Adapter struct {
	Clock   Clock
	Oracle  Oracle
	Timeout time.Duration
}

func NewAdapter(clock Clock, oracle Oracle, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &Adapter{Clock: clock, Oracle: oracle, Timeout: timeout}
}

func (a *Adapter) Now() uint64 {
	return a.Clock.Now()
}

// Window returns the window a schedule releases over. External schedules ask
// their oracle and fall back to the embedded pair on any failure; the oracle
// error is logged, never returned. Instant schedules have no window.
func (a *Adapter) Window(ctx context.Context, schedule models.VestingSchedule) (models.Window, bool) {
	switch schedule.Kind {
	case models.ScheduleLinear:
		return schedule.Window, true
	case models.ScheduleExternal:
		w, err := a.queryOracle(ctx, schedule.Oracle)
		if err != nil {
			zap.L().Warn("Oracle unavailable, using fallback window",
				zap.String("oracle", schedule.Oracle.String()),
				zap.Uint64("fallback_start", schedule.Window.Start),
				zap.Uint64("fallback_end", schedule.Window.End),
				zap.Error(err))
			return schedule.Window, true
		}
		return w, true
	default:
		return models.Window{}, false
	}
}

func (a *Adapter) queryOracle(ctx context.Context, account models.Account) (models.Window, error) {
	if a.Oracle == nil {
		return models.Window{}, errors.New("no oracle configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	start, end, err := a.Oracle.TimeWindow(ctx, account)
	if err != nil {
		return models.Window{}, fmt.Errorf("oracle %s: %w", account.Short(), err)
	}
	w := models.Window{Start: start, End: end}
	if !w.Valid() {
		return models.Window{}, fmt.Errorf("%w: start %d after end %d", ErrMalformedWindow, start, end)
	}
	return w, nil
}
