package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := Config{}
	SetDefaults(&cfg)

	require.Equal(t, DefaultStreamName, cfg.StreamName)
	require.Equal(t, DefaultTaskSubjectPrefix, cfg.TaskSubjectPrefix)
	require.Equal(t, DefaultTaskPartitions, cfg.TaskPartitions)
	require.Equal(t, DefaultResultSubject, cfg.ResultSubject)
	require.Equal(t, DefaultConsumerName, cfg.ConsumerName)
	require.Equal(t, DefaultLedgerBucket, cfg.LedgerBucket)
	require.Equal(t, DefaultAckWait, cfg.AckWait)
	require.Equal(t, DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	require.Equal(t, DefaultRetryBackoff, cfg.RetryBackoff)
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		StreamName:     "MYSTREAM",
		TaskPartitions: 4,
		AckWait:        time.Minute,
	}
	SetDefaults(&cfg)

	require.Equal(t, "MYSTREAM", cfg.StreamName)
	require.Equal(t, 4, cfg.TaskPartitions)
	require.Equal(t, time.Minute, cfg.AckWait)
	require.Equal(t, DefaultResultSubject, cfg.ResultSubject)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		SetDefaults(&cfg)

		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
	})

	t.Run("stream name with whitespace", func(t *testing.T) {
		cfg := valid()
		cfg.StreamName = "bad name"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("subject with wildcard", func(t *testing.T) {
		cfg := valid()
		cfg.TaskSubjectPrefix = "crawl.*"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("empty subject token", func(t *testing.T) {
		cfg := valid()
		cfg.ResultSubject = "crawl..result"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("result subject inside task space", func(t *testing.T) {
		cfg := valid()
		cfg.ResultSubject = cfg.TaskSubjectPrefix + ".result"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("partition count out of range", func(t *testing.T) {
		cfg := valid()
		cfg.TaskPartitions = 4096
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}
