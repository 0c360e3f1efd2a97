package redis

const (
	// deductCreditScript atomically deducts from the balance, refusing to go negative
	deductCreditScript = `
local credit_key = KEYS[1]      -- photokiosk:credit

local amount = tonumber(ARGV[1])
local balance = tonumber(redis.call('GET', credit_key) or '0')

if balance < amount then
  -- Leave balance untouched and report it
  return {0, balance}
end

local remaining = redis.call('DECRBY', credit_key, amount)
return {1, remaining}
`

	// recordOrderScript atomically stores an order and updates the daily aggregates
	recordOrderScript = `
local order_key = KEYS[1]       -- photokiosk:order:{id}
local index_key = KEYS[2]       -- photokiosk:orders:index:{date}
local sales_key = KEYS[3]       -- photokiosk:sales:daily:{date}

local order_id = ARGV[1]
local payload = ARGV[2]
local date = ARGV[3]
local total = tonumber(ARGV[4])
local extra_copies = tonumber(ARGV[5])
local cross_sell = tonumber(ARGV[6])
local ttl = tonumber(ARGV[7])

-- Orders are immutable once recorded
if redis.call('EXISTS', order_key) == 1 then
  return 0
end

redis.call('SET', order_key, payload)
redis.call('SADD', index_key, order_id)

if redis.call('EXISTS', sales_key) == 0 then
  redis.call('HSET', sales_key,
    'date', date,
    'orders', 0,
    'revenue', 0,
    'extra_copies', 0,
    'cross_sells', 0
  )
end

redis.call('HINCRBY', sales_key, 'orders', 1)
redis.call('HINCRBY', sales_key, 'revenue', total)
redis.call('HINCRBY', sales_key, 'extra_copies', extra_copies)
redis.call('HINCRBY', sales_key, 'cross_sells', cross_sell)

if ttl > 0 then
  redis.call('EXPIRE', order_key, ttl)
  redis.call('EXPIRE', index_key, ttl)
  redis.call('EXPIRE', sales_key, ttl)
end

return 1
`
)
