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

package database

const (
	// Balance queries
	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE asset = ? AND account = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, asset, account, balance, version)
		VALUES (?, ?, ?, ?, 1)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE asset = ? AND account = ? AND version = ?`

	queryGetAllBalances = `
		SELECT id, asset, account, balance, version, updated_at
		FROM account_balances
		WHERE asset = ? AND balance != '0'
		ORDER BY account`

	querySumBalances = `
		SELECT balance
		FROM account_balances
		WHERE asset = ?`

	// Allowance queries
	queryGetAllowance = `
		SELECT amount
		FROM allowances
		WHERE asset = ? AND owner = ? AND spender = ?`

	queryUpsertAllowance = `
		INSERT INTO allowances (asset, owner, spender, amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset, owner, spender) DO UPDATE SET amount = excluded.amount, updated_at = CURRENT_TIMESTAMP`

	// Supply queries
	queryGetSupply = `
		SELECT total, minted, burned
		FROM supplies
		WHERE asset = ?`

	queryUpsertSupply = `
		INSERT INTO supplies (asset, total, minted, burned)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset) DO UPDATE SET
			total = excluded.total, minted = excluded.minted, burned = excluded.burned, updated_at = CURRENT_TIMESTAMP`

	// Custody queries
	queryGetCustody = `
		SELECT amount
		FROM custody
		WHERE asset = ?`

	queryUpsertCustody = `
		INSERT INTO custody (asset, amount)
		VALUES (?, ?)
		ON CONFLICT(asset) DO UPDATE SET amount = excluded.amount, updated_at = CURRENT_TIMESTAMP`

	// Vest entry queries
	queryInsertVest = `
		INSERT INTO vest_entries (creator, receiver, asset, total, released, schedule, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetVests = `
		SELECT id, creator, receiver, asset, total, released, schedule, created_at
		FROM vest_entries
		WHERE receiver = ? AND asset = ?
		ORDER BY id`

	queryListVests = `
		SELECT id, creator, receiver, asset, total, released, schedule, created_at
		FROM vest_entries
		WHERE asset = ?
		ORDER BY id`

	queryUpdateReleased = `
		UPDATE vest_entries
		SET released = ?
		WHERE id = ? AND released = ?`

	// Event queries
	queryInsertEvent = `
		INSERT INTO events (id, kind, asset, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING seq`

	queryGetEvents = `
		SELECT seq, id, kind, asset, payload, created_at
		FROM events
		WHERE asset = ? AND seq > ?
		ORDER BY seq
		LIMIT ?`

	queryGetAllEvents = `
		SELECT seq, id, kind, asset, payload, created_at
		FROM events
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?`
)
