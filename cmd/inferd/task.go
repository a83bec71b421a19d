package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

var (
	flagTaskDesc  string
	flagTaskSteps []string
	flagTaskLimit int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage durable tasks on a running daemon",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a multi-step task",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		var created types.TaskCreated
		err = callDaemon("POST", base+"/v1/tasks", types.TaskRequest{
			Description: flagTaskDesc,
			Steps:       flagTaskSteps,
		}, &created)
		if err != nil {
			return err
		}
		fmt.Println(created.ID)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a task and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		var t types.Task
		if err := callDaemon("GET", base+"/v1/tasks/"+args[0], nil, &t); err != nil {
			return err
		}
		fmt.Printf("%s  %s  step %d/%d\n", t.ID, t.Status, t.CurrentStep, len(t.Steps))
		for i, s := range t.Steps {
			fmt.Printf("  [%d] %-10s %s\n", i, s.Status, s.Description)
			if s.Error != "" {
				fmt.Printf("      error: %s\n", s.Error)
			}
		}
		if t.Error != "" {
			fmt.Printf("error: %s\n", t.Error)
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		var out struct {
			Tasks []types.Task `json:"tasks"`
		}
		url := fmt.Sprintf("%s/v1/tasks?limit=%d", base, flagTaskLimit)
		if err := callDaemon("GET", url, nil, &out); err != nil {
			return err
		}
		for _, t := range out.Tasks {
			fmt.Printf("%s  %-10s %s\n", t.ID, t.Status, t.Description)
		}
		return nil
	},
}

var taskInterruptCmd = &cobra.Command{
	Use:   "interrupt <id>",
	Short: "Pause a running task at its next step boundary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		return callDaemon("POST", base+"/v1/tasks/"+args[0]+"/interrupt", nil, nil)
	},
}

var taskResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		return callDaemon("POST", base+"/v1/tasks/"+args[0]+"/resume", nil, nil)
	},
}

func init() {
	taskSubmitCmd.Flags().StringVar(&flagTaskDesc, "description", "", "task description")
	taskSubmitCmd.Flags().StringArrayVar(&flagTaskSteps, "step", nil, "step description (repeatable, in order)")
	_ = taskSubmitCmd.MarkFlagRequired("description")
	_ = taskSubmitCmd.MarkFlagRequired("step")
	taskListCmd.Flags().IntVar(&flagTaskLimit, "limit", 20, "maximum tasks to list")
	taskCmd.AddCommand(taskSubmitCmd, taskStatusCmd, taskListCmd, taskInterruptCmd, taskResumeCmd)
}
