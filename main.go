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

package main

import (
	"context"
	"os"

	"github.com/tk-aria/wmgr-sub001/internal/util/runner"
	"github.com/tk-aria/wmgr-sub001/run"
)

func main() {
	ctx := context.Background()
	cmd := run.GetMain(ctx)

	// exit on an error
	runner.ExitOnError = true

	err := cmd.ExecuteContext(ctx)
	if err = runner.HandleError(cmd, runner.WrapWithStack(err)); err != nil {
		os.Exit(1)
	}
}
