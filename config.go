package gateway

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the gateway's runtime configuration.
//
// All fields have working defaults applied by SetDefaults; a zero Config
// is usable. Loading this struct from a file or environment is the
// embedding process's concern.
type Config struct {
	// StreamName is the JetStream stream carrying both work items and
	// worker responses.
	StreamName string `yaml:"streamName"`

	// TaskSubjectPrefix is the subject prefix for published work items.
	// The full subject is "<prefix>.<partition>", where the partition
	// token is derived from the submitting user's identity, so one user's
	// requests always land on one subject.
	TaskSubjectPrefix string `yaml:"taskSubjectPrefix"`

	// TaskPartitions is the number of work subject partitions.
	TaskPartitions int `yaml:"taskPartitions"`

	// ResultSubject is the subject workers publish responses to.
	ResultSubject string `yaml:"resultSubject"`

	// ConsumerName is the durable name of the gateway's result consumer.
	// Keeping it stable across restarts lets the gateway resume from
	// where it left off.
	ConsumerName string `yaml:"consumerName"`

	// LedgerBucket is the JetStream KV bucket holding crawl request
	// records.
	LedgerBucket string `yaml:"ledgerBucket"`

	// AckWait is how long JetStream waits for an ack before redelivering
	// a worker response.
	AckWait time.Duration `yaml:"ackWait"`

	// BatchSize is the max messages fetched per pull from the result
	// consumer.
	BatchSize int `yaml:"batchSize"`

	// FetchTimeout is the expiry of each pull request.
	FetchTimeout time.Duration `yaml:"fetchTimeout"`

	// RetryBackoff is the wait before recreating a failed result
	// iterator.
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// Defaults applied by SetDefaults.
const (
	DefaultStreamName        = "CRAWL"
	DefaultTaskSubjectPrefix = "crawl.task"
	DefaultTaskPartitions    = 16
	DefaultResultSubject     = "crawl.result"
	DefaultConsumerName      = "crawl-gateway"
	DefaultLedgerBucket      = "crawl-requests"
	DefaultAckWait           = 30 * time.Second
	DefaultBatchSize         = 16
	DefaultFetchTimeout      = 5 * time.Second
	DefaultRetryBackoff      = time.Second
)

// SetDefaults fills in missing configuration values with defaults.
func SetDefaults(cfg *Config) {
	if cfg.StreamName == "" {
		cfg.StreamName = DefaultStreamName
	}
	if cfg.TaskSubjectPrefix == "" {
		cfg.TaskSubjectPrefix = DefaultTaskSubjectPrefix
	}
	if cfg.TaskPartitions <= 0 {
		cfg.TaskPartitions = DefaultTaskPartitions
	}
	if cfg.ResultSubject == "" {
		cfg.ResultSubject = DefaultResultSubject
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName
	}
	if cfg.LedgerBucket == "" {
		cfg.LedgerBucket = DefaultLedgerBucket
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = DefaultAckWait
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
}

// Validate checks the configuration for internal consistency. Call after
// SetDefaults.
func (c *Config) Validate() error {
	if err := validSubjectToken(c.StreamName); err != nil {
		return fmt.Errorf("%w: streamName: %w", ErrInvalidConfig, err)
	}
	if err := validSubject(c.TaskSubjectPrefix); err != nil {
		return fmt.Errorf("%w: taskSubjectPrefix: %w", ErrInvalidConfig, err)
	}
	if err := validSubject(c.ResultSubject); err != nil {
		return fmt.Errorf("%w: resultSubject: %w", ErrInvalidConfig, err)
	}
	if strings.HasPrefix(c.ResultSubject, c.TaskSubjectPrefix+".") {
		return fmt.Errorf("%w: resultSubject must not overlap the task subject space", ErrInvalidConfig)
	}
	if err := validSubjectToken(c.ConsumerName); err != nil {
		return fmt.Errorf("%w: consumerName: %w", ErrInvalidConfig, err)
	}
	if err := validSubjectToken(c.LedgerBucket); err != nil {
		return fmt.Errorf("%w: ledgerBucket: %w", ErrInvalidConfig, err)
	}
	if c.TaskPartitions <= 0 || c.TaskPartitions > 1024 {
		return fmt.Errorf("%w: taskPartitions must be in (0, 1024]", ErrInvalidConfig)
	}

	return nil
}

// validSubject checks a full subject: non-empty dot-separated tokens
// without wildcards or whitespace.
func validSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("must not be empty")
	}
	for _, token := range strings.Split(subject, ".") {
		if err := validSubjectToken(token); err != nil {
			return err
		}
	}

	return nil
}

// validSubjectToken checks a single subject token or name.
func validSubjectToken(token string) error {
	if token == "" {
		return fmt.Errorf("must not be empty")
	}
	if strings.ContainsAny(token, " \t\r\n.*>") {
		return fmt.Errorf("%q contains whitespace, dots, or wildcards", token)
	}

	return nil
}
