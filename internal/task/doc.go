// Package task manages durable multi-step tasks. Every state change is
// persisted before execution proceeds, so a task killed mid-run resumes at
// the step after the last completed one. Interruption is cooperative and
// lands on step boundaries only.
package task
