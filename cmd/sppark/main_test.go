package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

func TestTransferFormat(t *testing.T) {
	tests := []struct {
		flag, path string
		want       session.Format
	}{
		{"", "lists.yaml", session.FormatYAML},
		{"", "lists.json", session.FormatJSON},
		{"", "", session.FormatJSON},
		{"yaml", "lists.json", session.FormatYAML},
		{"json", "lists.yml", session.FormatJSON},
	}
	for _, tt := range tests {
		if got := transferFormat(tt.flag, tt.path); got != tt.want {
			t.Errorf("transferFormat(%q, %q) = %q, want %q", tt.flag, tt.path, got, tt.want)
		}
	}
}

func TestFinish(t *testing.T) {
	if err := finish("Program", nil); err != nil {
		t.Errorf("finish(nil) = %v", err)
	}
	stopped := fmt.Errorf("%w: %w", motion.ErrStopped, context.Canceled)
	if err := finish("Program", stopped); err != nil {
		t.Errorf("finish(stopped) = %v", err)
	}
	err := finish("Program", motion.ErrTooFewPoints)
	if !errors.Is(err, motion.ErrTooFewPoints) || !strings.HasPrefix(err.Error(), "Program: ") {
		t.Errorf("finish(precondition) = %v", err)
	}
}

func TestRenderPoints(t *testing.T) {
	if got := renderPoints(session.Outbound, nil); !strings.Contains(got, "empty") {
		t.Errorf("empty list rendered as %q", got)
	}
	out := renderPoints(session.Program, []robot.Point{
		{ID: "0123456789abcdef", Posture: robot.Posture{1, 2, 3, 4, 5, 6, 7}},
		{ID: "x", Name: "drop", Posture: robot.Uniform(90)},
	})
	for _, want := range []string{"PROG 1", "drop", "01234567", "CH6"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789") {
		t.Error("ID not shortened")
	}
}
