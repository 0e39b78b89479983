package redis

import (
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestExtractKeys(t *testing.T) {
	assert.Equal(t, []string{"coparent:mq:processed:42"},
		extractKeys([]interface{}{"set", "coparent:mq:processed:42", "1", "nx"}))
	assert.Equal(t, []string{"a", "b"}, extractKeys([]interface{}{"del", "a", "b"}))
	assert.Nil(t, extractKeys([]interface{}{"ping"}))
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "coparent:session:***", sanitizeKey("coparent:session:0b1c"))
	assert.Equal(t, "ratelimit:answers:1.2.3.4", sanitizeKey("ratelimit:answers:1.2.3.4"))
	assert.True(t, strings.HasSuffix(sanitizeKey(strings.Repeat("k", 150)), "..."))
}

func TestCommandStatus(t *testing.T) {
	assert.Equal(t, "success", commandStatus(nil))
	assert.Equal(t, "not_found", commandStatus(redis.Nil))
	assert.Equal(t, "error", commandStatus(errors.New("boom")))
}
