package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyAgentName is returned when a resolution is attempted without an
// agent name. This is a caller bug, not a missing agent.
var ErrEmptyAgentName = errors.New("agent name is required")

// NotFoundError means no configured source contains a complete config+prompt
// pair for the agent. Retrying is pointless without an intervening sync.
type NotFoundError struct {
	Agent   string
	Checked []string
}

func (e *NotFoundError) Error() string {
	if len(e.Checked) == 0 {
		return fmt.Sprintf("agent %q not found: no usable sources", e.Agent)
	}
	return fmt.Sprintf("agent %q not found in any source (checked: %s)", e.Agent, strings.Join(e.Checked, ", "))
}

// InvalidConfigError means a config file exists but fails minimal
// validation. Distinct from NotFoundError so operators can tell a typo in
// the agent name apart from a broken definition.
type InvalidConfigError struct {
	Agent  string
	Source string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("agent %q has an invalid config in source %s: %s", e.Agent, e.Source, e.Reason)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidConfig(err error) bool {
	var ic *InvalidConfigError
	return errors.As(err, &ic)
}
