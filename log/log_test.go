//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)
	cases := []struct {
		in       string
		expected zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{LevelFatal, zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
	}
	for _, c := range cases {
		SetLevel(c.in)
		assert.Equal(t, c.expected, zapLevel.Level(), "SetLevel(%q)", c.in)
	}
}

func TestSetFormat(t *testing.T) {
	old := Default
	defer func() { Default = old }()

	SetFormat(FormatJSON)
	assert.NotNil(t, Default)
	assert.NotSame(t, old, Default)

	SetFormat("anything")
	assert.NotNil(t, Default)
}

func TestPackageHelpersForward(t *testing.T) {
	old := Default
	defer func() { Default = old }()
	rec := &recordingLogger{}
	Default = rec

	Debug("d")
	Debugf("d %d", 1)
	Info("i")
	Infof("i %d", 1)
	Warn("w")
	Warnf("w %d", 1)
	Error("e")
	Errorf("e %d", 1)
	Fatal("f")
	Fatalf("f %d", 1)

	assert.Equal(t, 10, rec.calls)
}

type recordingLogger struct{ calls int }

func (r *recordingLogger) Debug(args ...any)                 { r.calls++ }
func (r *recordingLogger) Debugf(format string, args ...any) { r.calls++ }
func (r *recordingLogger) Info(args ...any)                  { r.calls++ }
func (r *recordingLogger) Infof(format string, args ...any)  { r.calls++ }
func (r *recordingLogger) Warn(args ...any)                  { r.calls++ }
func (r *recordingLogger) Warnf(format string, args ...any)  { r.calls++ }
func (r *recordingLogger) Error(args ...any)                 { r.calls++ }
func (r *recordingLogger) Errorf(format string, args ...any) { r.calls++ }
func (r *recordingLogger) Fatal(args ...any)                 { r.calls++ }
func (r *recordingLogger) Fatalf(format string, args ...any) { r.calls++ }
