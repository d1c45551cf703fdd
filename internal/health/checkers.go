// SPDX-License-Identifier: MIT

package health

import "context"

// FuncChecker adapts a probe function. A failing critical probe reports
// unhealthy; a failing optional probe reports degraded.
type FuncChecker struct {
	name     string
	critical bool
	probe    func(ctx context.Context) error
}

// NewFuncChecker creates a FuncChecker.
func NewFuncChecker(name string, critical bool, probe func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, critical: critical, probe: probe}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if c.probe == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.probe(ctx); err != nil {
		status := StatusDegraded
		if c.critical {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
