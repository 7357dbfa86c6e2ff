package kernel

import "fmt"

func errInvalidLabel(label Label, numLabels int) error {
	return fmt.Errorf("kernel label %d out of range [0, %d)", int(label), numLabels)
}

func errNonPositiveExecutions(executions int) error {
	return fmt.Errorf("kernel executions must be positive, got %d", executions)
}
