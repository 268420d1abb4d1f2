package dataservice

import (
	"strconv"
	"time"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/record"
)

// Pool names read through by the service.
const (
	PoolPartitions  = "partition_data"
	PoolRecordLists = "record_lists"
	PoolRecords     = "records"
	PoolAggregates  = "aggregates"
	PoolCounts      = "partition_counts"
)

// Pools lists every pool a registry must provide.
var Pools = []string{PoolPartitions, PoolRecordLists, PoolRecords, PoolAggregates, PoolCounts}

// DefaultPools returns the pool table used when configuration names none.
func DefaultPools() map[string]cache.PoolConfig {
	return map[string]cache.PoolConfig{
		PoolPartitions:  {MaxSize: 50, TTL: time.Hour},
		PoolRecordLists: {MaxSize: 100, TTL: 30 * time.Minute},
		PoolRecords:     {MaxSize: 1000, TTL: 30 * time.Minute},
		PoolAggregates:  {MaxSize: 50, TTL: 30 * time.Minute},
		PoolCounts:      {MaxSize: 100, TTL: 30 * time.Minute},
	}
}

// Keys embed the week id between delimiters so that the scope of week 1
// never matches keys of week 12 or 21.
const weekListKey = "weeks:all"

func weekScope(weekID int64) string {
	return "week:" + strconv.FormatInt(weekID, 10) + ":"
}

func weekKey(weekID int64) string {
	return weekScope(weekID) + "week"
}

func recordListKey(weekID int64, opts record.ListOptions) string {
	return weekScope(weekID) + "records:" + strconv.Itoa(opts.Offset) + ":" + strconv.Itoa(opts.Limit)
}

func aggregateKey(weekID int64) string {
	return weekScope(weekID) + "aggregate"
}

func countKey(weekID int64) string {
	return weekScope(weekID) + "count"
}

func recordKey(id int64) string {
	return "record:" + strconv.FormatInt(id, 10) + ":"
}
