package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Setenv("WXPATH_TEST_STRING", "value")
	assert.Equal(t, "value", String("WXPATH_TEST_STRING", "default"))
	assert.Equal(t, "default", String("WXPATH_TEST_UNSET", "default"))
}

func TestInt(t *testing.T) {
	t.Setenv("WXPATH_TEST_INT", "2")
	assert.Equal(t, 2, Int("WXPATH_TEST_INT", 6))
	assert.Equal(t, 6, Int("WXPATH_TEST_UNSET", 6))

	t.Setenv("WXPATH_TEST_INT", "not-a-number")
	assert.Equal(t, 6, Int("WXPATH_TEST_INT", 6))
}

func TestBool(t *testing.T) {
	t.Setenv("WXPATH_TEST_BOOL", "true")
	assert.True(t, Bool("WXPATH_TEST_BOOL", false))
	assert.False(t, Bool("WXPATH_TEST_UNSET", false))
}

func TestDuration(t *testing.T) {
	t.Setenv("WXPATH_TEST_DURATION", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, Duration("WXPATH_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, Duration("WXPATH_TEST_UNSET", time.Second))
}
