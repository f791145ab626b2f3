// Copyright (C) 2023  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package weld

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite" // SQLite driver for the action cache.
	"shanhu.io/misc/errcode"
)

// ActionCache records action results keyed by content fingerprint, so a
// rule whose command, inputs and dependency closure are unchanged can skip
// its action. Hooks still run on a cache hit: the recorded output lines
// replay through the post-build hook, which rediscovers the same outputs.
type ActionCache struct {
	db *sql.DB
}

// OpenActionCache opens (and creates if needed) an action cache database at
// the given file path.
func OpenActionCache(file string) (*ActionCache, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, errcode.Annotate(err, "open action cache")
	}
	const create = `create table if not exists action_results (
		digest text primary key,
		result text not null
	)`
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return nil, errcode.Annotate(err, "create result table")
	}
	return &ActionCache{db: db}, nil
}

// Get looks up the recorded result for an action fingerprint.
func (c *ActionCache) Get(digest string) (*Result, bool, error) {
	const q = `select result from action_results where digest = ?`
	var bs []byte
	if err := c.db.QueryRow(q, digest).Scan(&bs); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errcode.Annotate(err, "query result")
	}
	res := new(Result)
	if err := json.Unmarshal(bs, res); err != nil {
		return nil, false, errcode.Annotate(err, "unmarshal result")
	}
	return res, true, nil
}

// Put records the result of an executed action.
func (c *ActionCache) Put(digest string, res *Result) error {
	bs, err := json.Marshal(res)
	if err != nil {
		return errcode.Annotate(err, "marshal result")
	}
	const q = `insert or replace into action_results (digest, result)
		values (?, ?)`
	if _, err := c.db.Exec(q, digest, string(bs)); err != nil {
		return errcode.Annotate(err, "save result")
	}
	return nil
}

// Remove drops a recorded result.
func (c *ActionCache) Remove(digest string) error {
	const q = `delete from action_results where digest = ?`
	if _, err := c.db.Exec(q, digest); err != nil {
		return errcode.Annotate(err, "remove result")
	}
	return nil
}

// Close closes the underlying database.
func (c *ActionCache) Close() error { return c.db.Close() }
