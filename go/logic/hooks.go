/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/openark/golib/log"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
	rplos "github.com/github/gh-rpl/go/os"
)

const (
	onBeforeSwitchover   = "gh-rpl-on-before-switchover"
	onAfterSwitchover    = "gh-rpl-on-after-switchover"
	onBeforeFailover     = "gh-rpl-on-before-failover"
	onAfterFailover      = "gh-rpl-on-after-failover"
	onFailure            = "gh-rpl-on-failure"
	onMasterChange       = "gh-rpl-on-master-change"
	onInteractiveCommand = "gh-rpl-on-interactive-command"
)

type HooksExecutor struct {
	topologyContext *base.TopologyContext
	writer          io.Writer
}

func NewHooksExecutor(topologyContext *base.TopologyContext) *HooksExecutor {
	return &HooksExecutor{
		topologyContext: topologyContext,
		writer:          os.Stderr,
	}
}

func (this *HooksExecutor) hookVariables(extraVariables ...string) []string {
	env := []string{
		fmt.Sprintf("GH_RPL_UUID=%s", this.topologyContext.Uuid),
		fmt.Sprintf("GH_RPL_ELAPSED_SECONDS=%f", this.topologyContext.ElapsedTime().Seconds()),
		fmt.Sprintf("GH_RPL_HOOKS_HINT=%s", this.topologyContext.HooksHintMessage),
	}
	if hostname, err := os.Hostname(); err == nil {
		env = append(env, fmt.Sprintf("GH_RPL_EXECUTING_HOST=%s", hostname))
	}
	return append(env, extraVariables...)
}

func (this *HooksExecutor) applyEnvironmentVariables(extraVariables ...string) []string {
	return append(os.Environ(), this.hookVariables(extraVariables...)...)
}

// executeHook executes a command, and sets relevant environment variables
// combined output & error are printed to the configured writer.
func (this *HooksExecutor) executeHook(ctx context.Context, hook string, extraVariables ...string) error {
	cmd := exec.CommandContext(ctx, hook)
	cmd.Env = this.applyEnvironmentVariables(extraVariables...)

	combinedOutput, err := cmd.CombinedOutput()
	fmt.Fprintln(this.writer, string(combinedOutput))
	return log.Errore(err)
}

func (this *HooksExecutor) detectHooks(baseName string) (hooks []string, err error) {
	if this.topologyContext.HooksPath == "" {
		return hooks, err
	}
	pattern := fmt.Sprintf("%s/%s*", this.topologyContext.HooksPath, baseName)
	hooks, err = filepath.Glob(pattern)
	return hooks, err
}

func (this *HooksExecutor) executeHooks(ctx context.Context, baseName string, extraVariables ...string) error {
	hooks, err := this.detectHooks(baseName)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		log.Infof("executing %+v hook: %+v", baseName, hook)
		if err := this.executeHook(ctx, hook, extraVariables...); err != nil {
			return err
		}
	}
	return nil
}

// executeCommand runs an --exec-before / --exec-after command. The old and the new
// master are passed as arguments: old host, old port, new host, new port.
func (this *HooksExecutor) executeCommand(ctx context.Context, commandText string, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey, extraVariables ...string) error {
	if commandText == "" {
		return nil
	}
	arguments := []string{}
	for _, key := range []*mysql.InstanceKey{oldMaster, newMaster} {
		if key == nil {
			arguments = append(arguments, "", "")
			continue
		}
		arguments = append(arguments, key.Hostname, strconv.Itoa(key.Port))
	}
	log.Infof("executing command: %s %+v", commandText, arguments)
	return rplos.CommandRun(ctx, commandText, this.hookVariables(extraVariables...), arguments...)
}

func leadershipVariables(command string, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey) []string {
	variables := []string{fmt.Sprintf("GH_RPL_COMMAND=%s", command)}
	if oldMaster != nil {
		variables = append(variables, fmt.Sprintf("GH_RPL_OLD_MASTER=%s", oldMaster.DisplayString()))
	}
	if newMaster != nil {
		variables = append(variables, fmt.Sprintf("GH_RPL_NEW_MASTER=%s", newMaster.DisplayString()))
	}
	return variables
}

func (this *HooksExecutor) onBeforeSwitchover(ctx context.Context, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey) error {
	variables := leadershipVariables("switchover", oldMaster, newMaster)
	if err := this.executeCommand(ctx, this.topologyContext.ExecBefore, oldMaster, newMaster, variables...); err != nil {
		return err
	}
	return this.executeHooks(ctx, onBeforeSwitchover, variables...)
}

func (this *HooksExecutor) onAfterSwitchover(ctx context.Context, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey) error {
	variables := leadershipVariables("switchover", oldMaster, newMaster)
	if err := this.executeCommand(ctx, this.topologyContext.ExecAfter, oldMaster, newMaster, variables...); err != nil {
		return err
	}
	return this.executeHooks(ctx, onAfterSwitchover, variables...)
}

func (this *HooksExecutor) onBeforeFailover(ctx context.Context, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey) error {
	variables := leadershipVariables("failover", oldMaster, newMaster)
	if err := this.executeCommand(ctx, this.topologyContext.ExecBefore, oldMaster, newMaster, variables...); err != nil {
		return err
	}
	return this.executeHooks(ctx, onBeforeFailover, variables...)
}

func (this *HooksExecutor) onAfterFailover(ctx context.Context, oldMaster *mysql.InstanceKey, newMaster *mysql.InstanceKey) error {
	variables := leadershipVariables("failover", oldMaster, newMaster)
	if err := this.executeCommand(ctx, this.topologyContext.ExecAfter, oldMaster, newMaster, variables...); err != nil {
		return err
	}
	return this.executeHooks(ctx, onAfterFailover, variables...)
}

func (this *HooksExecutor) onFailure(ctx context.Context, command string, failure error) error {
	v := fmt.Sprintf("GH_RPL_FAILURE='%s'", failure.Error())
	return this.executeHooks(ctx, onFailure, fmt.Sprintf("GH_RPL_COMMAND=%s", command), v)
}

func (this *HooksExecutor) onMasterChange(ctx context.Context, slave *mysql.InstanceKey, newMaster *mysql.InstanceKey) error {
	return this.executeHooks(ctx, onMasterChange,
		fmt.Sprintf("GH_RPL_SLAVE=%s", slave.DisplayString()),
		fmt.Sprintf("GH_RPL_NEW_MASTER=%s", newMaster.DisplayString()),
	)
}

func (this *HooksExecutor) onInteractiveCommand(ctx context.Context, command string) error {
	v := fmt.Sprintf("GH_RPL_COMMAND='%s'", command)
	return this.executeHooks(ctx, onInteractiveCommand, v)
}
