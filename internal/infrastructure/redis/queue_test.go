package redis

import (
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestGroupBacklog(t *testing.T) {
	groups := []redis.XInfoGroup{
		{Name: "other-group", Lag: 99, Pending: 12},
		{Name: "clearway-workers", Lag: 3, Pending: 2},
	}

	waiting, active, found := groupBacklog(groups, "clearway-workers")
	assert.True(t, found)
	// Waiting comes from the group lag, not stream length: acked entries
	// remain in the stream but must not count as backlog.
	assert.Equal(t, int64(3), waiting)
	assert.Equal(t, int64(2), active)
}

func TestGroupBacklog_FullyDrainedGroup(t *testing.T) {
	groups := []redis.XInfoGroup{
		// A long-lived stream: entries were added, delivered and acked.
		{Name: "clearway-workers", Lag: 0, Pending: 0, EntriesRead: 5000},
	}

	waiting, active, found := groupBacklog(groups, "clearway-workers")
	assert.True(t, found)
	assert.Zero(t, waiting)
	assert.Zero(t, active)
}

func TestGroupBacklog_UnknownGroup(t *testing.T) {
	waiting, active, found := groupBacklog(nil, "clearway-workers")
	assert.False(t, found)
	assert.Zero(t, waiting)
	assert.Zero(t, active)
}

func TestIsNoStreamErr(t *testing.T) {
	assert.True(t, isNoStreamErr(errors.New("ERR no such key")))
	assert.False(t, isNoStreamErr(errors.New("NOGROUP No such consumer group")))
	assert.False(t, isNoStreamErr(nil))
}
