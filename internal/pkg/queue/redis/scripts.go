package redisQueue

import "github.com/redis/go-redis/v9"

// KEYS: ready, messages, inflight, receipts, counts
// ARGV: now (ms), visible-again deadline (ms), new receipt handle
var receiveScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, r in ipairs(expired) do
	local id = redis.call('HGET', KEYS[4], r)
	redis.call('ZREM', KEYS[3], r)
	redis.call('HDEL', KEYS[4], r)
	if id and redis.call('HEXISTS', KEYS[2], id) == 1 then
		redis.call('RPUSH', KEYS[1], id)
	end
end
while true do
	local id = redis.call('RPOP', KEYS[1])
	if not id then
		return false
	end
	local body = redis.call('HGET', KEYS[2], id)
	if body then
		redis.call('ZADD', KEYS[3], ARGV[2], ARGV[3])
		redis.call('HSET', KEYS[4], ARGV[3], id)
		local count = redis.call('HINCRBY', KEYS[5], id, 1)
		return {id, body, tostring(count)}
	end
end
`)

// Result: 1 done, 0 unknown handle, -1 expired handle.
// KEYS: inflight, receipts, messages, counts
// ARGV: receipt handle, now (ms)
var deleteScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[2], ARGV[1])
if not id then
	return 0
end
local deadline = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not deadline or tonumber(deadline) <= tonumber(ARGV[2]) then
	return -1
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], id)
redis.call('HDEL', KEYS[4], id)
return 1
`)

// Result: 1 done, 0 unknown handle, -1 expired handle.
// KEYS: inflight, receipts
// ARGV: receipt handle, now (ms), new deadline (ms)
var visibilityScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 0 then
	return 0
end
local deadline = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not deadline or tonumber(deadline) <= tonumber(ARGV[2]) then
	return -1
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
return 1
`)
