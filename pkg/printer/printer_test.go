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

package printer

import (
	"bytes"
	"testing"
)

func TestOptPrintf_WithRepo(t *testing.T) {
	var buf bytes.Buffer
	pr := New(&buf, &buf)

	opt := NewOpt().Repo("services/api")
	pr.OptPrintf(opt, "sync successful\n")

	expected := "Repository \"services/api\": sync successful\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestOptPrintf_NilOptions(t *testing.T) {
	var buf bytes.Buffer
	pr := New(&buf, &buf)

	pr.OptPrintf(nil, "General message\n")

	expected := "General message\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestPrintRepo_WithLeadingNewline(t *testing.T) {
	var buf bytes.Buffer
	pr := New(&buf, &buf)

	pr.PrintRepo("tools/cli", true)

	expected := "\nRepository \"tools/cli\":\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestPrintRepo_WithoutLeadingNewline(t *testing.T) {
	var buf bytes.Buffer
	pr := New(&buf, &buf)

	pr.PrintRepo("tools/cli", false)

	expected := "Repository \"tools/cli\":\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}
