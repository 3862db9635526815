package market

import "github.com/redis/go-redis/v9"

// Lua scripts executed atomically by Redis. Each one is the serialization
// point for the keys it touches. Return codes are translated into the error
// taxonomy by the client.

// createScript writes a new entity hash, its uniqueness guards and its index sets.
//
//	KEYS[1]            entity hash
//	KEYS[2..1+n]       guard keys (must not exist; set to the member)
//	KEYS[2+n..]        index sets (member is added)
//	ARGV[1]            member (entity id)
//	ARGV[2]            n, number of guard keys
//	ARGV[3..]          field/value pairs
//
// Returns 1 on success, 0 if the entity exists, -2 if a guard is taken.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local n = tonumber(ARGV[2])
for i = 2, n + 1 do
  if redis.call('EXISTS', KEYS[i]) == 1 then
    return -2
  end
end
for i = 2, n + 1 do
  redis.call('SET', KEYS[i], ARGV[1])
end
for i = n + 2, #KEYS do
  redis.call('SADD', KEYS[i], ARGV[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('HSET', KEYS[1], 'version', 1)
return 1
`)

// createApplicationScript writes a pending application while its listing is
// still active, so a concurrent close or expiry either sees it or refuses it.
//
//	KEYS[1] application hash, KEYS[2] listing hash, KEYS[3] pending guard
//	KEYS[4..] index sets
//	ARGV[1] application id, ARGV[2..] field/value pairs
//
// Returns {code, listing status}: 1 on success, 0 if the application exists,
// -1 if the listing is missing, -2 if the guard is taken, -3 if the listing
// is not active.
var createApplicationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {0, ''}
end
local status = redis.call('HGET', KEYS[2], 'status')
if not status then
  return {-1, ''}
end
if status ~= 'active' then
  return {-3, status}
end
if redis.call('EXISTS', KEYS[3]) == 1 then
  return {-2, status}
end
redis.call('SET', KEYS[3], ARGV[1])
for i = 4, #KEYS do
  redis.call('SADD', KEYS[i], ARGV[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('HSET', KEYS[1], 'version', 1)
return {1, status}
`)

// casScript applies a versioned update to an entity hash.
//
//	KEYS[1]            entity hash
//	KEYS[2..1+2m]      index moves as (from, to) set pairs
//	KEYS[2+2m..]       keys to delete
//	ARGV[1]            expected version
//	ARGV[2]            member moved between index sets
//	ARGV[3]            m, number of index moves
//	ARGV[4]            g, number of field guards
//	ARGV[5..4+2g]      guard field/value pairs (stored value must match; absent reads as '0')
//	ARGV[5+2g..]       field/value pairs
//
// Returns the new version, 0 on version mismatch, -1 if the entity is
// missing, -2 if a guarded field changed.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return 0
end
local g = tonumber(ARGV[4])
for i = 0, g - 1 do
  local v = redis.call('HGET', KEYS[1], ARGV[5 + 2 * i]) or '0'
  if v ~= ARGV[6 + 2 * i] then
    return -2
  end
end
local first = 5 + 2 * g
if #ARGV >= first then
  redis.call('HSET', KEYS[1], unpack(ARGV, first))
end
local m = tonumber(ARGV[3])
for i = 0, m - 1 do
  redis.call('SREM', KEYS[2 + 2 * i], ARGV[2])
  redis.call('SADD', KEYS[3 + 2 * i], ARGV[2])
end
for i = 2 + 2 * m, #KEYS do
  redis.call('DEL', KEYS[i])
end
return redis.call('HINCRBY', KEYS[1], 'version', 1)
`)

// reserveSlotScript reserves one slot if committed participants plus live
// reservations leave room. Expired reservations are purged first.
//
//	KEYS[1] listing hash, KEYS[2] participants ZSET, KEYS[3] reservations hash
//	ARGV[1] token, ARGV[2] now ms, ARGV[3] expiry ms
//
// Returns 1 on success, 0 if no slot is available, -1 if the listing is
// missing, -2 if the listing is closed or expired.
var reserveSlotScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status == 'full' then
  return 0
end
if status ~= 'active' then
  return -2
end
local now = tonumber(ARGV[2])
local live = 0
local res = redis.call('HGETALL', KEYS[3])
for i = 1, #res, 2 do
  if tonumber(res[i + 1]) <= now then
    redis.call('HDEL', KEYS[3], res[i])
  else
    live = live + 1
  end
end
local max = tonumber(redis.call('HGET', KEYS[1], 'max_participants'))
if redis.call('ZCARD', KEYS[2]) + live >= max then
  return 0
end
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
return 1
`)

// commitSlotScript turns a live reservation into a participant and optionally
// applies one companion CAS write in the same step.
//
//	KEYS[1] listing hash, KEYS[2] participants ZSET, KEYS[3] reservations hash
//	KEYS[4] the user's listing index
//	KEYS[5] companion hash (only when ARGV[4] is non-empty)
//	KEYS[6..] keys deleted with the companion write
//	ARGV[1] token, ARGV[2] now ms, ARGV[3] user ref, ARGV[4] companion expected version
//	ARGV[5] listing id, ARGV[6..] companion field/value pairs
//
// Returns 2 when the listing became full, 1 on success, -1 if the listing or
// companion is missing, -2 if the listing is no longer active, -3 if the
// reservation expired, -4 on companion version mismatch, -5 if the user is
// already a participant. The reservation is consumed in every case.
var commitSlotScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
if not exp or tonumber(exp) <= tonumber(ARGV[2]) then
  return -3
end
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= 'active' then
  return -2
end
if ARGV[4] ~= '' then
  local cv = redis.call('HGET', KEYS[5], 'version')
  if not cv then
    return -1
  end
  if cv ~= ARGV[4] then
    return -4
  end
end
if redis.call('ZSCORE', KEYS[2], ARGV[3]) then
  return -5
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
redis.call('SADD', KEYS[4], ARGV[5])
local full = 0
local max = tonumber(redis.call('HGET', KEYS[1], 'max_participants'))
if redis.call('ZCARD', KEYS[2]) >= max then
  redis.call('HSET', KEYS[1], 'status', 'full')
  full = 1
end
redis.call('HSET', KEYS[1], 'updated_at_ms', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
if ARGV[4] ~= '' then
  if #ARGV >= 6 then
    redis.call('HSET', KEYS[5], unpack(ARGV, 6))
  end
  redis.call('HINCRBY', KEYS[5], 'version', 1)
  for i = 6, #KEYS do
    redis.call('DEL', KEYS[i])
  end
end
return 1 + full
`)

// releaseSlotScript drops a reservation. Returns 1 if it existed.
var releaseSlotScript = redis.NewScript(`
return redis.call('HDEL', KEYS[1], ARGV[1])
`)

// listingStatusScript moves a listing to closed or expired.
//
//	KEYS[1] listing hash, KEYS[2] reservations hash, KEYS[3] open listings set
//	ARGV[1] target status, ARGV[2] now ms, ARGV[3] listing id
//
// Returns {code, previous status}: 1 applied, 0 already in the target status,
// -1 missing, -2 the listing is closed and cannot be expired.
var listingStatusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return {-1, ''}
end
if cur == ARGV[1] then
  return {0, cur}
end
if cur == 'closed' then
  return {-2, cur}
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at_ms', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('DEL', KEYS[2])
redis.call('SREM', KEYS[3], ARGV[3])
return {1, cur}
`)

// reapReservationsScript purges expired reservations of one listing.
// Returns the number purged.
var reapReservationsScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local purged = 0
local res = redis.call('HGETALL', KEYS[1])
for i = 1, #res, 2 do
  if tonumber(res[i + 1]) <= now then
    redis.call('HDEL', KEYS[1], res[i])
    purged = purged + 1
  end
end
return purged
`)

// recordPaymentScript applies one payment to a booking exactly once.
//
//	KEYS[1] booking hash, KEYS[2] payments hash
//	ARGV[1] external ref, ARGV[2] amount, ARGV[3] now ms
//
// Returns {code, amount paid, payment status, booking status}: 1 applied,
// 0 duplicate external ref, -1 missing booking. The lifecycle status and
// version are never touched; the booking status is reported so a payment
// landing on a cancelled booking can be refunded.
var recordPaymentScript = redis.NewScript(`
local lifecycle = redis.call('HGET', KEYS[1], 'status')
if not lifecycle then
  return {-1, '0', '', ''}
end
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return {0, redis.call('HGET', KEYS[1], 'amount_paid'), redis.call('HGET', KEYS[1], 'payment_status'), lifecycle}
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
local paid = redis.call('HINCRBY', KEYS[1], 'amount_paid', ARGV[2])
local total = tonumber(redis.call('HGET', KEYS[1], 'total_amount'))
local status = 'partial'
if paid >= total then
  status = 'paid'
end
redis.call('HSET', KEYS[1], 'payment_status', status, 'payment_updated_at_ms', ARGV[3])
return {1, tostring(paid), status, lifecycle}
`)
