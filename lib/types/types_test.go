package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, Duration(90*time.Second), d)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`15`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"banana"`), &d))
}

func TestNullDurationJSON(t *testing.T) {
	t.Parallel()

	var nd NullDuration
	require.NoError(t, json.Unmarshal([]byte(`null`), &nd))
	assert.False(t, nd.Valid)
	assert.Equal(t, time.Duration(0), nd.ValueOrZero())

	require.NoError(t, json.Unmarshal([]byte(`"10s"`), &nd))
	assert.Equal(t, NullDurationFrom(10*time.Second), nd)
	assert.Equal(t, 10*time.Second, nd.ValueOrZero())

	data, err := json.Marshal(nd)
	require.NoError(t, err)
	assert.Equal(t, `"10s"`, string(data))

	data, err = json.Marshal(NullDuration{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}

func TestNullDurationText(t *testing.T) {
	t.Parallel()

	var nd NullDuration
	require.NoError(t, nd.UnmarshalText([]byte(`250ms`)))
	assert.Equal(t, NullDurationFrom(250*time.Millisecond), nd)

	require.NoError(t, nd.UnmarshalText(nil))
	assert.False(t, nd.Valid)
}
