// Copyright 2024 The wmgr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/cmdforeach"
	"github.com/tk-aria/wmgr-sub001/internal/cmdinit"
	"github.com/tk-aria/wmgr-sub001/internal/cmdmanifest"
	"github.com/tk-aria/wmgr-sub001/internal/cmdstatus"
	"github.com/tk-aria/wmgr-sub001/internal/cmdsync"
)

// GetWmgrCommands returns the set of wmgr commands to be registered
func GetWmgrCommands(ctx context.Context) []*cobra.Command {
	c := []*cobra.Command{
		cmdinit.NewCommand(ctx),
		cmdsync.NewCommand(ctx),
		cmdstatus.NewCommand(ctx),
		cmdforeach.NewCommand(ctx),
		cmdmanifest.NewDumpCommand(ctx),
		cmdmanifest.NewApplyCommand(ctx),
	}

	// apply cross-cutting issues to commands
	NormalizeCommand(c...)
	return c
}

// NormalizeCommand will modify commands to be consistent, e.g. silencing errors
func NormalizeCommand(c ...*cobra.Command) {
	for i := range c {
		cmd := c[i]
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		NormalizeCommand(cmd.Commands()...)
	}
}
