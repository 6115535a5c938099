// Package validation checks event logs against a taxonomy: it groups records
// into per-user timelines, runs ordering, dependency and funnel checks, and
// aggregates the findings into one Result per file.
package validation

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/correlator-io/trackcheck/internal/config"
)

const (
	defaultExtension = ".jsonl"
	maxWorkers       = 256
)

var (
	// ErrInvalidOrderCheck indicates an unknown monotonicity mode.
	ErrInvalidOrderCheck = errors.New("invalid order check mode")

	// ErrInvalidWorkers indicates a worker count outside 1-256.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrEmptyExtension indicates the log file extension is empty.
	ErrEmptyExtension = errors.New("log file extension cannot be empty")
)

// OrderCheck selects which sequence the monotonicity check walks.
type OrderCheck string

const (
	// OrderCheckSorted walks each timeline after it was sorted by time. Only
	// unparsable timestamps can leave it out of order.
	OrderCheckSorted OrderCheck = "sorted"

	// OrderCheckIngestion walks each user's records in file order and flags
	// events logged after a later one.
	OrderCheckIngestion OrderCheck = "ingestion"
)

// ParseOrderCheck parses a mode name case-insensitively.
func ParseOrderCheck(s string) (OrderCheck, error) {
	order := OrderCheck(strings.ToLower(strings.TrimSpace(s)))

	switch order {
	case OrderCheckSorted, OrderCheckIngestion:
		return order, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: sorted, ingestion)", ErrInvalidOrderCheck, s)
	}
}

// Options configures validation runs.
type Options struct {
	// Extension selects the files a directory run picks up (case-insensitive).
	Extension string
	// Workers bounds how many files a directory run validates at once.
	Workers int
	// OrderCheck selects the monotonicity mode.
	OrderCheck OrderCheck
	// CheckCommonProperties type-checks properties declared without an event.
	CheckCommonProperties bool
}

// DefaultOptions returns the defaults: .jsonl files, one worker per CPU,
// sorted-mode ordering and no common property checks.
func DefaultOptions() Options {
	return Options{
		Extension:  defaultExtension,
		Workers:    runtime.NumCPU(),
		OrderCheck: OrderCheckSorted,
	}
}

// LoadOptions reads options from the environment, falling back to DefaultOptions.
func LoadOptions() Options {
	defaults := DefaultOptions()

	return Options{
		Extension:  config.GetEnvStr("TRACKCHECK_LOG_EXTENSION", defaults.Extension),
		Workers:    config.GetEnvInt("TRACKCHECK_WORKERS", defaults.Workers),
		OrderCheck: OrderCheck(strings.ToLower(config.GetEnvStr("TRACKCHECK_ORDER_CHECK", string(defaults.OrderCheck)))),
		CheckCommonProperties: config.GetEnvBool(
			"TRACKCHECK_CHECK_COMMON_PROPERTIES", defaults.CheckCommonProperties,
		),
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Extension) == "" {
		return ErrEmptyExtension
	}

	if o.Workers < 1 || o.Workers > maxWorkers {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidWorkers, o.Workers, maxWorkers)
	}

	switch o.OrderCheck {
	case OrderCheckSorted, OrderCheckIngestion:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: sorted, ingestion)", ErrInvalidOrderCheck, o.OrderCheck)
	}
}

func (o Options) normalizedExtension() string {
	ext := strings.ToLower(strings.TrimSpace(o.Extension))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return ext
}
