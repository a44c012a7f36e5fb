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

// Package errors defines the error handling used by the wmgr codebase.
package errors

import (
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/tk-aria/wmgr-sub001/internal/types"
)

// Error is an implementation of the error interface used in the wmgr
// codebase.
// It is based on the design in https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
type Error struct {
	// Path is the path name of the workspace or file involved in the
	// operation.
	Path types.UniquePath

	// Repo is the repository (manifest dest or URL) involved in the
	// operation.
	Repo Repo

	// Op is the operation being performed, for ex. sync.run, manifest.load
	Op Op

	// Kind refers to the class of errors
	Kind Kind

	// Err refers to the wrapped error (if any)
	Err error
}

// Op describes the operation being performed.
type Op string

// Repo identifies the repository an operation was acting on.
type Repo string

// Kind describes the class of errors encountered.
type Kind int

const (
	Other         Kind = iota // Unclassified. Will not be printed.
	Exist                     // Item already exists.
	Internal                  // Internal error.
	InvalidParam              // Value is not valid.
	MissingParam              // Required value is missing or empty.
	Git                       // Errors from the version-control executable.
	FileSystem                // Filesystem operation failure.
	Config                    // Configuration failure.
	Manifest                  // Manifest validation or parsing failure.
	Workspace                 // Workspace state failure.
	Exec                      // Command execution failure.
	Network                   // Network failure.
	Validation                // Input validation failure.
	Serialization             // Serialization failure.
	Canceled                  // Operation was canceled.
	Timeout                   // Operation exceeded its deadline.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Exist:
		return "item already exist"
	case Internal:
		return "internal error"
	case InvalidParam:
		return "invalid parameter value"
	case MissingParam:
		return "missing parameter value"
	case Git:
		return "git error"
	case FileSystem:
		return "filesystem error"
	case Config:
		return "configuration error"
	case Manifest:
		return "manifest error"
	case Workspace:
		return "workspace error"
	case Exec:
		return "command execution error"
	case Network:
		return "network error"
	case Validation:
		return "validation error"
	case Serialization:
		return "serialization error"
	case Canceled:
		return "operation canceled"
	case Timeout:
		return "operation timed out"
	}
	return "unknown kind"
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Path != "" {
		pad(b, ": ")
		b.WriteString("path ")
		b.WriteString(string(e.Path))
	}

	if e.Repo != "" {
		pad(b, ": ")
		b.WriteString("repo ")
		b.WriteString(string(e.Repo))
	}

	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		if wrappedErr, ok := e.Err.(*Error); ok {
			if !wrappedErr.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrappedErr.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// pad appends given str to the string buffer.
func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Zero() bool {
	return e.Op == "" && e.Path == "" && e.Repo == "" && e.Kind == 0 && e.Err == nil
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports matching against a template error with errors.Is: a target
// *Error matches when each of its non-zero fields equals the corresponding
// field of e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	if t.Kind != Other && t.Kind != e.Kind {
		return false
	}
	if t.Path != "" && t.Path != e.Path {
		return false
	}
	if t.Repo != "" && t.Repo != e.Repo {
		return false
	}
	return true
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}

func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case types.UniquePath:
			e.Path = a
		case Repo:
			e.Repo = a
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = fmt.Errorf("%s", a)
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to error.E", a, a))
		}
	}

	wrappedErr, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Path == wrappedErr.Path {
		wrappedErr.Path = ""
	}

	if e.Repo == wrappedErr.Repo {
		wrappedErr.Repo = ""
	}

	if e.Op == wrappedErr.Op {
		wrappedErr.Op = ""
	}

	if e.Kind == wrappedErr.Kind {
		wrappedErr.Kind = 0
	}

	return e
}
