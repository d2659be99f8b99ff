// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execute

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// CommandRunner executes one stage command, feeding merged stdout/stderr to
// onLine one line at a time.
//
// The interface exists so handler and manager tests substitute a fake; the
// copilot CLI commands themselves stay out of test scope.
type CommandRunner interface {
	// Run executes argv and blocks until exit. Returns the process return
	// code; error is reserved for failures to run at all (missing binary,
	// cancelled context).
	Run(ctx context.Context, argv []string, onLine func(line string)) (int, error)
}

// ExecRunner runs stage commands as real subprocesses.
type ExecRunner struct{}

// Run executes argv with stdout and stderr merged into a single line
// stream, preserving interleaving order.
func (ExecRunner) Run(ctx context.Context, argv []string, onLine func(string)) (int, error) {
	if len(argv) == 0 {
		return -1, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return -1, fmt.Errorf("start %s: %w", argv[0], err)
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}()

	err := cmd.Wait()
	pw.Close()
	<-scanDone
	pr.Close()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return 0, nil
}

var _ CommandRunner = ExecRunner{}
