package redis

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitMemberUniquePerRequest(t *testing.T) {
	now := time.Now().UnixMicro()

	a := limitMember(now)
	b := limitMember(now)

	assert.NotEqual(t, a, b, "same-microsecond requests must not collapse into one entry")
	assert.True(t, strings.HasPrefix(a, strconv.FormatInt(now, 10)+"-"))
}

func TestRateLimitKeyPrefix(t *testing.T) {
	assert.Equal(t, "ratelimit:api:1.2.3.4", rateLimitKey("api:1.2.3.4"))
}
