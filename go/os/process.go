/*
   Copyright 2014 Outbrain Inc.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package os

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/openark/golib/log"
)

// execCmd writes commandText to a temporary script and prepares bash to run it
func execCmd(ctx context.Context, commandText string, env []string, arguments ...string) (*exec.Cmd, string, error) {
	tmpFile, err := os.CreateTemp("", "gh-rpl-process-cmd-")
	if err != nil {
		return nil, "", log.Errore(err)
	}
	defer tmpFile.Close()
	if _, err := tmpFile.WriteString(commandText); err != nil {
		return nil, tmpFile.Name(), log.Errore(err)
	}
	log.Debugf("execCmd: %s", commandText)
	shellArguments := append([]string{}, tmpFile.Name())
	shellArguments = append(shellArguments, arguments...)
	log.Debugf("%+v", shellArguments)

	cmd := exec.CommandContext(ctx, "bash", shellArguments...)
	cmd.Env = append(os.Environ(), env...)
	return cmd, tmpFile.Name(), nil
}

// CommandRun executes a command with extra environment variables
func CommandRun(ctx context.Context, commandText string, env []string, arguments ...string) error {
	cmd, tmpFileName, err := execCmd(ctx, commandText, env, arguments...)
	if tmpFileName != "" {
		defer os.Remove(tmpFileName)
	}
	if err != nil {
		return err
	}
	if err := cmd.Run(); err != nil {
		return log.Errore(fmt.Errorf("CommandRun(%s) failed: %w", commandText, err))
	}
	return nil
}

// RunCommandWithOutput executes a command and return output bytes
func RunCommandWithOutput(ctx context.Context, commandText string, env []string) ([]byte, error) {
	cmd, tmpFileName, err := execCmd(ctx, commandText, env)
	if tmpFileName != "" {
		defer os.Remove(tmpFileName)
	}
	if err != nil {
		return nil, err
	}

	outputBytes, err := cmd.CombinedOutput()
	if err != nil {
		return outputBytes, log.Errore(fmt.Errorf("RunCommandWithOutput(%s) failed: %w", commandText, err))
	}
	return outputBytes, nil
}
