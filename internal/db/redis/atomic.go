package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/dhruv1108git/pulse/internal/db"
)

// hsetIfAbsentScript creates a hash with all fields only when the key is new.
// EXISTS + HSET run inside one script, so concurrent inserts cannot interleave.
var hsetIfAbsentScript = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
for i = 1, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// hcasScript swaps hash fields only when field ARGV[1] still holds ARGV[2].
// Returns {1, expect} on success, {0, current} on mismatch, {-1, ''} when the
// key is missing.
var hcasScript = rueidis.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur == false then
  return {-1, ''}
end
if cur ~= ARGV[2] then
  return {0, cur}
end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return {1, cur}
`)

// HSetIfAbsent atomically creates the hash iff the key does not exist.
func (s *Store) HSetIfAbsent(ctx context.Context, key string, fields map[string]string) (bool, error) {
	args := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	created, err := hsetIfAbsentScript.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	return created == 1, nil
}

// HCompareAndSwap applies the update only if hash field `field` equals `expect`.
func (s *Store) HCompareAndSwap(
	ctx context.Context, key, field, expect string, update map[string]string,
) (db.CASOutcome, error) {
	args := make([]string, 0, 2+len(update)*2)
	args = append(args, field, expect)
	for k, v := range update {
		args = append(args, k, v)
	}

	reply, err := hcasScript.Exec(ctx, s.client, []string{key}, args).ToArray()
	if err != nil {
		return db.CASOutcome{}, &db.Error{Op: db.OpEval, Err: err}
	}
	if len(reply) != 2 {
		return db.CASOutcome{}, &db.Error{Op: db.OpEval, Err: fmt.Errorf("unexpected CAS reply length %d", len(reply))}
	}

	flag, err := reply[0].AsInt64()
	if err != nil {
		return db.CASOutcome{}, &db.Error{Op: db.OpEval, Err: err}
	}
	current, err := reply[1].ToString()
	if err != nil {
		return db.CASOutcome{}, &db.Error{Op: db.OpEval, Err: err}
	}

	switch flag {
	case 1:
		return db.CASOutcome{Found: true, Applied: true, Current: current}, nil
	case 0:
		return db.CASOutcome{Found: true, Applied: false, Current: current}, nil
	default:
		return db.CASOutcome{Found: false}, nil
	}
}
